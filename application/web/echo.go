package web

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"

	"http1d/application/http"
	"http1d/application/http/actor/server"
	"http1d/application/http/status"
)

// EchoApp answers every request with a plain text description of it.
type EchoApp struct{}

var _ server.Dispatcher = EchoApp{}

func (EchoApp) Dispatch(c *server.HandleContext, req *http.Request) (*http.Response, error) {
	var b bytes.Buffer

	b.WriteString("EchoApp response:\n")
	fmt.Fprintf(&b, "client: %s\n", req.Client)
	fmt.Fprintf(&b, "method: %s\n", req.Method)
	fmt.Fprintf(&b, "uri: %s\n", req.URI)
	fmt.Fprintf(&b, "version: %s\n", req.Version)
	b.WriteString("headers:\n")
	for _, f := range req.Headers {
		fmt.Fprintf(&b, "  %s: %s\n", f.Name, strconv.Quote(f.Value))
	}

	if len(req.Body) > 0 {
		b.WriteString("\nbody:\n")
		if req.Method == http.MethodPost {
			params, err := req.PostParams()
			if err != nil {
				return nil, err
			}

			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "%s : %s\n", strconv.Quote(k), strconv.Quote(params.Get(k)))
			}
		} else {
			for _, line := range bytes.Split(req.Body, []byte{'\n'}) {
				b.WriteString(strconv.Quote(string(line)))
				b.WriteByte('\n')
			}
		}
	}

	headers := http.Headers{{Name: "Content-Type", Value: http.MediaTypeText}}
	return http.NewResponse(status.OK, headers, b.Bytes())
}
