// Package transport implements the low-level HTTP/1.1 exchange used by the
// posnet connector.
//
// Unlike net/http.Client, a Transport exposes every stage of the exchange
// separately (argument resolution, connect, send, header read and body read)
// so callers can tell exactly which step failed. A Transport carries a single
// connection for a single request; there is no pooling, no keep-alive and no
// redirect handling.
//
//	t := transport.New(transport.Options{ConnectTimeout: 30 * time.Second})
//	defer t.Close()
//
//	req, err := t.RequestArguments("https://posnet.example.com/PosnetWebService/XML")
//	...
//	err = t.Open(ctx, &req)
//	err = t.SendRequest(ctx, &req)
//	reply, err := t.ReadReplyHeaders(ctx)
//	for {
//	    chunk, err := t.ReadReplyBody(ctx, 2000)
//	    if err != nil || len(chunk) == 0 {
//	        break
//	    }
//	}
package transport
