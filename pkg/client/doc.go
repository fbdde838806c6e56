/*
Package client is the HTTPS transport to an IBM Security Verify Access
appliance management interface (LMI).

Client implements ApplianceClient: JSON requests through Send, streamed
downloads through DownloadFile and multipart uploads through Upload. It
authenticates with HTTP basic auth and keeps the session cookies the
appliance hands out in a per-client cookie jar.

	c, err := client.NewClient(client.Config{
		Host:          "isva.example.com",
		User:          "admin",
		Password:      password,
		ValidateCerts: true,
		Timeout:       30 * time.Second,
	})
	resp, err := c.Send(ctx, "/isam/dsc/config", http.MethodGet, nil, nil)

# Status codes

Send never turns a status code into an error. 404 and every other non-2xx
response come back as a Response so the caller can decide; only transport
failures, an unrecoverable 401 and a 2xx body that is not JSON are errors.
A 401 on a session that was already accepted resets the session and the
request is replayed once.

JSON numbers are decoded as json.Number so integer settings survive a
read-modify-write cycle unchanged.

The fake subpackage provides an in-memory appliance for tests.
*/
package client
