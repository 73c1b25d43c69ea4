// Package searchdex embeds the searchdex facade in a Go program: one client
// for indexing and querying entries on Redis (RediSearch), Elasticsearch or an
// embedded bleve index, with backend errors reclassified into a single taxonomy.
//
// # Entry API
//
//	client, _ := searchdex.New(ctx,
//	    searchdex.WithRedis("localhost:6379", ""),
//	    searchdex.WithField("name", searchdex.FieldText),
//	    searchdex.WithField("color", searchdex.FieldTag),
//	    searchdex.WithAutoCommit(),
//	)
//	defer client.Close()
//	_, _ = client.Add(ctx, searchdex.Entry{"id": "1", "name": "red lamp", "color": "red"})
//	resp, _ := client.Query(ctx, "@color:{{c}}", "red")
//
// # Typed API
//
//	type Product struct {
//	    ID    string  `search:"id"`
//	    Name  string  `search:"name"`
//	    Price float64 `search:"price"`
//	}
//
//	products, _ := searchdex.QueryAs[Product](ctx, client, "@price:[{min} +inf]", 10)
//
// Errors match the sentinels of this package with errors.Is.
package searchdex
