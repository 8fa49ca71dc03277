// Package simdex embeds the résumé similarity engine in a Go program.
//
// The client talks to Redis directly (documents, vectors, embedding cache)
// and keeps the lexical index in process. It offers the same operations as
// the HTTP API without running the server.
//
//	client, _ := simdex.New(ctx,
//	    simdex.WithRedis("localhost:6379", ""),
//	    simdex.WithEmbedder(myEmbedder), simdex.WithVectorDimensions(1024),
//	)
//	defer client.Close()
//
//	_, _ = client.Documents().Upsert(ctx, simdex.Document{
//	    ID: "r-17", Motivation: "...", CareerHistory: "...",
//	})
//	res, _ := client.Similar(ctx, "r-17")
//	fmt.Println(res.Risk.Band, len(res.Matches))
package simdex
