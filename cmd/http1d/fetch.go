package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"http1d/application/http"
	"http1d/application/http/actor/client"
	"http1d/application/http/actor/server"
	"http1d/transport/pipe"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// fetch runs the configured handlers on an in-process pipe network, sends
// them one GET for cfg.Fetch and prints the response to w. Nothing is
// bound to a socket.
func fetch(ctx context.Context, cfg Config, logger *slog.Logger, w io.Writer) error {
	clk := clock.New()
	network := pipe.NewNetwork(clk)
	addr := pipe.Addr{Name: "http1d"}

	lis, err := network.Listen(addr)
	if err != nil {
		return errors.Wrap(err, "listening in process")
	}

	srv := server.New(lis, logger, clk, newApp(cfg), cfg.ServerOptions())
	srv.Start()
	defer srv.Close()

	conn, err := client.Dial(ctx, network, addr, logger, clk, client.Options{
		Timeout: cfg.ReadTimeout,
		Decode:  http.DefaultDecodeOptions,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	head := &http.RequestHead{
		Method:  http.MethodGet,
		URI:     cfg.Fetch,
		Headers: http.Headers{{Name: "Connection", Value: "close"}},
	}

	res, err := conn.Do(ctx, http.NewRequest(head, nil))
	if err != nil {
		return errors.Wrapf(err, "fetching %s", cfg.Fetch)
	}

	return printResponse(w, res)
}

func printResponse(w io.Writer, res *http.Response) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(res.Status.String())
	bw.WriteByte('\n')
	for _, f := range res.Headers {
		bw.WriteString(f.Name)
		bw.WriteString(": ")
		bw.WriteString(f.Value)
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	bw.Write(res.Body)

	return errors.Wrap(bw.Flush(), "printing response")
}
