package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/shineum/mailthread/internal/config"
)

const redacted = "<redacted>"

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)

	data, err := dumpConfig(env.cfg)
	if err != nil {
		return err
	}

	fname := cmd.Args().First()
	if fname == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(fname, data, 0o600)
	}
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

// dumpConfig renders cfg as YAML without its secrets.
func dumpConfig(cfg *config.Config) ([]byte, error) {
	c := *cfg
	for _, s := range []*string{&c.SMTP.Password, &c.IMAP.Password, &c.SES.SecretAccessKey} {
		if *s != "" {
			*s = redacted
		}
	}
	data, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal configuration: %w", err)
	}
	return data, nil
}
