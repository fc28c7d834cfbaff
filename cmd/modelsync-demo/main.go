// Command modelsync-demo is an interactive shell for exercising a
// Dispatcher by hand: publish, delete, pause, and resume a small tree and
// watch the deltas a mirrored observer receives. Adapted from the
// teacher's own REPL shell (cmd/main.go), trading its network-console
// command set for one that drives the consistency engine directly.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"

	"github.com/drpcorg/modelsync"
	"github.com/drpcorg/modelsync/treemodel"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("show"),
	readline.PcItem("set"),
	readline.PcItem("del"),
	readline.PcItem("pause"),
	readline.PcItem("resume"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// shell holds the demo's single root node and the one observer mirroring
// it, rebuilding the tree and republishing the whole thing on every "set",
// and deleting just the named child on every "del" — good enough for a
// REPL, not a pattern a real integration should copy for anything
// performance sensitive.
type shell struct {
	d        *modelsync.Dispatcher
	mirror   *treemodel.Mirror
	children map[modelsync.Id]*treemodel.Node
	order    []modelsync.Id
}

func newShell() *shell {
	d := modelsync.New(modelsync.Options{})
	root := treemodel.New("root", nil, nil)
	mirror := treemodel.NewMirror(root, true)
	d.Subscribe(modelsync.Wrap(mirror))
	return &shell{d: d, mirror: mirror, children: map[modelsync.Id]*treemodel.Node{}}
}

func (s *shell) currentRoot() *treemodel.Node {
	kids := make([]*treemodel.Node, 0, len(s.order))
	for _, id := range s.order {
		kids = append(kids, s.children[id])
	}
	return treemodel.New("root", nil, kids)
}

func (s *shell) set(id modelsync.Id, payload string) {
	if _, exists := s.children[id]; !exists {
		s.order = append(s.order, id)
	}
	s.children[id] = treemodel.New(id, payload, nil)
	s.d.Publish(s.currentRoot(), nil)
}

func (s *shell) del(id modelsync.Id) {
	node, ok := s.children[id]
	if !ok {
		fmt.Fprintf(os.Stderr, "no such id: %s\n", id)
		return
	}
	delete(s.children, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.d.Delete(node, nil)
}

func (s *shell) show() {
	root, hasRoot := s.mirror.CurrentModel()
	if !hasRoot {
		fmt.Println("(no root)")
		return
	}
	root.ForEachChild(func(m modelsync.Model) {
		id, _ := m.Identity()
		n := m.(*treemodel.Node)
		fmt.Printf("%s = %v\n", id, n.Payload())
	})
	deltas := s.mirror.Deltas()
	if len(deltas) > 0 {
		last := deltas[len(deltas)-1]
		fmt.Printf("last delta: changed=%v deleted=%v\n", keys(last.Changed), keys(last.Deleted))
	}
}

func keys(m map[modelsync.Id]struct{}) []modelsync.Id {
	out := make([]modelsync.Id, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func main() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:              "modelsync> ",
		HistoryFile:         "/tmp/modelsync-demo.history",
		AutoComplete:        completer,
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	s := newShell()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "help":
			fmt.Println("commands: set <id> <payload>, del <id>, show, pause, resume, exit")
		case "set":
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "usage: set <id> <payload>")
				continue
			}
			s.set(modelsync.Id(args[0]), strings.Join(args[1:], " "))
		case "del":
			if len(args) < 1 {
				fmt.Fprintln(os.Stderr, "usage: del <id>")
				continue
			}
			s.del(modelsync.Id(args[0]))
		case "show":
			s.show()
		case "pause":
			s.d.Pause(s.mirror)
		case "resume":
			s.d.Resume(s.mirror)
		case "exit", "quit":
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}
	}
}
