package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func init() {
	DefaultList = append(DefaultList, Ping())
}

func Ping() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "authenticate against the warehouse and report the round trip",
		Action: runPing,
		Flags:  connectionFlags(),
	}
}

func runPing(c *cli.Context) error {
	start := time.Now()
	env, conn, err := dial(c)
	if err != nil {
		return err
	}
	defer env.Term()
	defer conn.Close()

	fmt.Printf("session established with account %s in %s\n",
		c.String("account"), time.Since(start).Round(time.Millisecond))
	return nil
}
