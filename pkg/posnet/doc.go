// Package posnet sends XML requests to a POSNET payment gateway and returns
// the raw XML response.
//
// A Connector holds the gateway URL, the HTTP method (POST by default), a
// debug level and a TLS-forcing flag. Each call to Send opens a fresh
// connection, submits the payload in the xmldata field, reads the reply in
// bounded chunks and closes the connection again:
//
//	c := posnet.New("https://posnet.example.com/PosnetWebService/XML",
//	    posnet.WithLogger(log.NewZerologAdapter()),
//	    posnet.WithDebugLevel(1),
//	)
//	resp, err := c.Send(ctx, requestXML)
//	if errors.Is(err, posnet.ErrConnectFailed) {
//	    ...
//	}
//
// Redirects are reported in the log but never followed. A Connector is not
// safe for concurrent use.
package posnet
