// Command checkout starts a checkout session for one voucher against a
// running storefront and prints the payment URL.
//
//	checkout -url http://localhost:4000 voucher-spa
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/punchamoorthee/voucherfront/internal/client"
	"github.com/punchamoorthee/voucherfront/internal/logger"
)

func main() {
	baseURL := flag.String("url", "http://localhost:4000", "Storefront base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	verbose := flag.Bool("v", false, "Log request failures")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: checkout [-url URL] <voucher-id>")
		os.Exit(2)
	}

	level := "fatal"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(level, "development")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	opener := client.OpenerFunc(func(url string) error {
		_, err := fmt.Fprintln(os.Stdout, url)
		return err
	})
	c := client.New(*baseURL, opener, client.WithLogger(log))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := c.Checkout(ctx, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, c.LastError())
		os.Exit(1)
	}
}
