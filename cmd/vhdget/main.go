package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sysreinstaller/vhdget/internal/adapter"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI is the root command. Global flags override the loaded configuration.
type CLI struct {
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Mock    bool             `help:"Use the built-in offline catalog"`
	Server  string           `short:"s" help:"Server ID to use instead of the remembered one"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Servers  ServersCmd  `cmd:"" help:"List catalog servers"`
	Images   ImagesCmd   `cmd:"" aliases:"ls" help:"List images of the selected server"`
	Download DownloadCmd `cmd:"" aliases:"get" help:"Download one or more images"`
	History  HistoryCmd  `cmd:"" help:"Show, clear or retry finished downloads"`
	Local    LocalCmd    `cmd:"" help:"List or delete downloaded images"`
	Settings SettingsCmd `cmd:"" help:"Show or change preferences"`
	Init     InitCmd     `cmd:"" help:"Write a default configuration file"`

	// test hooks
	out    io.Writer       `kong:"-"`
	config *adapter.Config `kong:"-"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("vhdget"),
		kong.Description("Browse and download system images from autoinstaller servers."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run(&cli))
}

// stdout returns where command output goes
func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}
