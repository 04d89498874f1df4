package main

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/zhiqiangxu/qsock"
)

func main() {
	app := &cli.App{
		Name:      "qsockcat",
		Usage:     "pipe stdin to a unix or tcp endpoint and print the reply",
		UsageText: "qsockcat [-t timeout] endpoint",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: 5 * time.Second},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowAppHelp(c)
			}

			ep, err := qsock.ParseEndpoint(c.Args().Get(0))
			if err != nil {
				return err
			}

			conn, err := net.DialTimeout(ep.Kind.Network(), ep.Address, c.Duration("timeout"))
			if err != nil {
				return fmt.Errorf("connect fail: %w", err)
			}
			defer conn.Close()

			if _, err = io.Copy(conn, os.Stdin); err != nil {
				return fmt.Errorf("write fail: %w", err)
			}
			if cw, ok := conn.(interface{ CloseWrite() error }); ok {
				if err = cw.CloseWrite(); err != nil {
					return err
				}
			}

			_, err = io.Copy(os.Stdout, conn)
			return err
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
