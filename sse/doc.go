// Package sse streams run events to HTTP clients as Server-Sent Events.
//
// A Hub routes published messages to connected clients. Each client
// subscribes with a glob pattern over topics, for example "run:*" for every
// run or "run:3f2a*" for one.
//
//	hub := sse.NewHub()
//	go hub.Run()
//	router.GET("/events", func(c *gin.Context) {
//	    sse.ServeSSE(hub, c.Writer, c.Request, uuid.NewString(), c.DefaultQuery("topic", "*"))
//	})
//	hub.Publish("run:42", "node.finished", payload)
package sse
