package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"voxchat/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: voxchat-ctl [--socket PATH] send TEXT | record | clear | cancel")
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdSend:
		msg.Text = strings.Join(args[1:], " ")
		if strings.TrimSpace(msg.Text) == "" {
			fmt.Fprintln(os.Stderr, "send: empty text")
			os.Exit(2)
		}
	case ipc.CmdRecord, ipc.CmdClear, ipc.CmdCancel:
	default:
		usage()
		os.Exit(2)
	}

	if err := ipc.Send(*socket, msg); err != nil {
		fmt.Println("voxchat not running:", err)
		os.Exit(1)
	}
}
