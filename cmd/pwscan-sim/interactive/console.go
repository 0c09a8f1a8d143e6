// Package interactive provides the console of pwscan-sim: it changes the
// served graph while clients are connected.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/pwscan/pwscan-go/pkg/graph"
	"github.com/pwscan/pwscan-go/pkg/model"
	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/wire"
)

// Graph is the part of *graph.Service the console drives.
type Graph interface {
	Name() string
	ClientCount() int
	Objects() []graph.Object
	AddObject(o graph.Object) error
	RemoveObject(id uint32) error
	SetMetadata(id, subject uint32, key string, value *string) error
	SetNodeProp(id uint32, key, value string) error
}

// Console reads commands and applies them to a graph.
type Console struct {
	svc Graph
	out io.Writer
	rl  *readline.Instance
}

// New creates a console on the terminal.
func New(svc Graph) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("list"),
			readline.PcItem("clients"),
			readline.PcItem("add",
				readline.PcItem("sink"),
				readline.PcItem("source"),
			),
			readline.PcItem("remove"),
			readline.PcItem("set"),
			readline.PcItem("unset"),
			readline.PcItem("prop"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{svc: svc, out: rl.Stdout(), rl: rl}, nil
}

// Run reads commands until quit, EOF or ctx is done. cancel is called
// when the user leaves.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the user asked to quit.
func (c *Console) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls":
		c.cmdList()
	case "clients":
		fmt.Fprintf(c.out, "%d client(s) connected to %q\n", c.svc.ClientCount(), c.svc.Name())
	case "add":
		err = c.cmdAdd(args)
	case "remove", "rm":
		err = c.cmdRemove(args)
	case "set":
		err = c.cmdSet(args)
	case "unset":
		err = c.cmdUnset(args)
	case "prop":
		err = c.cmdProp(args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help')\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `Commands:
  list                               Show all objects
  clients                            Show connected clients
  add sink|source <id> <name> [ch]   Add an audio node
  remove <id>                        Remove an object
  set <key> <value>                  Set a key of the settings metadata
  unset <key>                        Remove a key of the settings metadata
  prop <id> <key> <value>            Change an info property of a node
  help                               Show this help
  quit                               Stop the simulator`)
}

func (c *Console) cmdList() {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCLASS")
	for _, o := range c.svc.Objects() {
		name := o.Props.String(props.KeyNodeName, "")
		if name == "" {
			name = o.Props.String(props.KeyMetadataName, "")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			o.ID, shortType(o.Type), name, o.Props.String(props.KeyMediaClass, ""))
	}
	tw.Flush()
}

func (c *Console) cmdAdd(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: add sink|source <id> <name> [channels]")
	}

	var class string
	switch strings.ToLower(args[0]) {
	case "sink":
		class = model.MediaClassSink
	case "source":
		class = model.MediaClassSource
	default:
		return fmt.Errorf("unknown node kind %q", args[0])
	}

	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	name := args[2]

	info := props.New(
		props.KeyMediaClass, class,
		props.KeyNodeName, name,
		props.KeyNodeDescription, name,
	)
	if len(args) > 3 {
		if _, err := strconv.Atoi(args[3]); err != nil {
			return fmt.Errorf("invalid channel count %q", args[3])
		}
		info.Set(props.KeyAudioChannels, args[3])
	}

	err = c.svc.AddObject(graph.Object{
		ID:    id,
		Type:  wire.TypeNode,
		Props: props.New(props.KeyMediaClass, class, props.KeyNodeName, name),
		Info:  info,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s %d (%s)\n", class, id, name)
	return nil
}

func (c *Console) cmdRemove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := c.svc.RemoveObject(id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Removed %d\n", id)
	return nil
}

func (c *Console) cmdSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <key> <value>")
	}
	id, err := c.settingsID()
	if err != nil {
		return err
	}
	value := strings.Join(args[1:], " ")
	if err := c.svc.SetMetadata(id, 0, args[0], &value); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s = %s\n", args[0], value)
	return nil
}

func (c *Console) cmdUnset(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unset <key>")
	}
	id, err := c.settingsID()
	if err != nil {
		return err
	}
	if err := c.svc.SetMetadata(id, 0, args[0], nil); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s removed\n", args[0])
	return nil
}

func (c *Console) cmdProp(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: prop <id> <key> <value>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	value := strings.Join(args[2:], " ")
	if err := c.svc.SetNodeProp(id, args[1], value); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d: %s = %s\n", id, args[1], value)
	return nil
}

// settingsID finds the metadata object named "settings".
func (c *Console) settingsID() (uint32, error) {
	for _, o := range c.svc.Objects() {
		if o.Type == wire.TypeMetadata && o.Props.String(props.KeyMetadataName, "") == model.SettingsName {
			return o.ID, nil
		}
	}
	return 0, fmt.Errorf("graph has no %q metadata", model.SettingsName)
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q", s)
	}
	return uint32(id), nil
}

// shortType strips the interface prefix: "PipeWire:Interface:Node" -> "Node".
func shortType(t string) string {
	if i := strings.LastIndexByte(t, ':'); i >= 0 {
		return t[i+1:]
	}
	return t
}
