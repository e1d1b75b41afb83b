package commands

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	boreal "github.com/rudderlabs/boreal-sql-go"
)

var DefaultList []*cli.Command

// connectionFlags is the flag set shared by every command that dials the
// warehouse.
func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "account name", Required: true},
		&cli.StringFlag{Name: "user", Usage: "login name", Required: true},
		&cli.StringFlag{Name: "password", Usage: "password; prefer the environment variable", EnvVars: []string{"BOREAL_PASSWORD"}},
		&cli.StringFlag{Name: "host", Usage: "warehouse host, defaults to <account>.boreal.io"},
		&cli.IntFlag{Name: "port", Usage: "warehouse port"},
		&cli.StringFlag{Name: "database", Usage: "initial database"},
		&cli.StringFlag{Name: "schema", Usage: "initial schema"},
		&cli.StringFlag{Name: "warehouse", Usage: "initial virtual warehouse"},
		&cli.StringFlag{Name: "role", Usage: "initial role"},
		&cli.StringFlag{Name: "ca-bundle", Usage: "PEM file with additional trusted roots"},
		&cli.BoolFlag{Name: "insecure", Usage: "skip TLS peer verification"},
		&cli.DurationFlag{Name: "login-timeout", Value: 120 * time.Second, Usage: "login request timeout"},
	}
}

// dial builds an environment and an authenticated connection from the
// command's flags. The caller owns both and must Close and Term them.
func dial(c *cli.Context) (*boreal.Environment, *boreal.Connection, error) {
	env, err := boreal.Init()
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("ca-bundle") {
		if err := env.SetAttribute(boreal.GlobalCABundleFile, c.String("ca-bundle")); err != nil {
			env.Term()
			return nil, nil, err
		}
	}

	host := c.String("host")
	if host == "" {
		host = c.String("account") + ".boreal.io"
	}

	type attrValue struct {
		attr  boreal.Attribute
		value any
	}
	attrs := []attrValue{
		{boreal.AttrAccount, c.String("account")},
		{boreal.AttrUser, c.String("user")},
		{boreal.AttrPassword, c.String("password")},
		{boreal.AttrHost, host},
		{boreal.AttrLoginTimeout, c.Duration("login-timeout")},
	}
	if c.IsSet("port") {
		attrs = append(attrs, attrValue{boreal.AttrPort, c.Int("port")})
	}
	if c.Bool("insecure") {
		attrs = append(attrs, attrValue{boreal.AttrInsecureMode, true})
	}
	for _, f := range []struct {
		name string
		attr boreal.Attribute
	}{
		{"database", boreal.AttrDatabase},
		{"schema", boreal.AttrSchema},
		{"warehouse", boreal.AttrWarehouse},
		{"role", boreal.AttrRole},
	} {
		if c.IsSet(f.name) {
			attrs = append(attrs, attrValue{f.attr, c.String(f.name)})
		}
	}

	conn := env.NewConnection()
	for _, av := range attrs {
		if err := conn.SetAttribute(av.attr, av.value); err != nil {
			env.Term()
			return nil, nil, fmt.Errorf("setting %s: %w", av.attr, err)
		}
	}
	if err := conn.Connect(c.Context); err != nil {
		env.Term()
		return nil, nil, err
	}
	return env, conn, nil
}
