package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/urfave/cli/v2"
	"github.com/zhiqiangxu/qsock"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:      "qsockd",
		Usage:     "echo server over unix or tcp sockets",
		UsageText: "qsockd [-l endpoint]... [--reuseport] [--rate n]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "listen", Aliases: []string{"l"}, Value: cli.NewStringSlice("unix:///tmp/qsockd.sock"), EnvVars: []string{"QSOCKD_LISTEN"}, Usage: "endpoint to listen on, repeatable"},
			&cli.BoolFlag{Name: "reuseport", Usage: "set SO_REUSEPORT on tcp endpoints"},
			&cli.IntFlag{Name: "rate", Usage: "max accepts per second per endpoint, 0 for unlimited"},
			&cli.IntFlag{Name: "read-timeout", Usage: "read timeout in seconds"},
			&cli.IntFlag{Name: "write-timeout", Usage: "write timeout in seconds"},
			&cli.DurationFlag{Name: "grace", Value: 5 * time.Second, Usage: "how long to wait for connections on shutdown"},
		},
		Action: serve,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	opts := []qsock.ListenOption{qsock.WithRemoveStale()}
	if c.Bool("reuseport") {
		opts = append(opts, qsock.WithReusePort())
	}

	handler := qsock.HandlerWithMW(qsock.Echo(), qsock.LogConn)

	var bindings []qsock.ServerBinding
	for _, addr := range c.StringSlice("listen") {
		if _, err := qsock.ParseEndpoint(addr); err != nil {
			return fmt.Errorf("--listen %s: %w", addr, err)
		}
		bindings = append(bindings, qsock.ServerBinding{
			Addr:                addr,
			Handler:             handler,
			ListenOptions:       opts,
			DefaultReadTimeout:  c.Int("read-timeout"),
			DefaultWriteTimeout: c.Int("write-timeout"),
			AcceptRate:          c.Int("rate"),
		})
	}

	srv := qsock.NewServer(bindings)

	var g run.Group
	{
		done := make(chan struct{})
		g.Add(func() error {
			if err := srv.ListenAndServe(); err != nil {
				return err
			}
			select {
			case err := <-srv.ServeErrors():
				return err
			case <-done:
				return nil
			}
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("grace"))
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				qsock.Logger().Error("Shutdown", zap.Error(err))
			}
			close(done)
		})
	}
	{
		sig := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		g.Add(func() error {
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case s := <-sig:
				qsock.Logger().Info("signal", zap.Stringer("sig", s))
				return nil
			case <-cancel:
				return nil
			}
		}, func(error) {
			signal.Stop(sig)
			close(cancel)
		})
	}

	return g.Run()
}
