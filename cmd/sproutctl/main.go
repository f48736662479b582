package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"sproutDB/client"
	"sproutDB/sql/plan"
	"sproutDB/sql/session"
)

type Options struct {
	Command  string
	Host     string
	Port     uint
	Database string
}

func ParseArgs() *Options {
	opts := &Options{}
	flag.StringVar(&opts.Host, "H", "127.0.0.1", "Host to connect to")
	flag.StringVar(&opts.Host, "host", "127.0.0.1", "Host to connect to")
	flag.UintVar(&opts.Port, "p", 9605, "Port number to connect to")
	flag.UintVar(&opts.Port, "port", 9605, "Port number to connect to")
	flag.StringVar(&opts.Database, "d", "", "Database, the server default when empty")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		opts.Command = strings.Join(args, " ")
	}
	return opts
}

type Shell struct {
	Client      *client.Client
	Database    string
	Editor      *readline.Instance
	HistoryPath string
}

func NewShell(host string, port uint, database string) (*Shell, error) {
	c, err := client.Dial(fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	return &Shell{
		Client:      c,
		Database:    database,
		HistoryPath: fmt.Sprintf("%s/.sproutctl_history", home),
	}, nil
}

func (s *Shell) Execute(input string) error {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "!help":
		fmt.Print(`
Available commands:

    !help                                          Show this help
    !status                                        Show server status
    !tables                                        List tables
    !table <name>                                  Show a table
    !use <database>                                Switch database
    !begin [readonly]                              Begin a transaction
    !commit                                        Commit the transaction
    !rollback                                      Roll back the transaction
    !create-database <name>                        Create a database
    !create-table <name> <col>:<type>[:pk][:null][:unique] ... [fk:<cols>:<sink>:<cols>[:<update>[:<delete>]]]
    !create-index <table> <name> <cols> [unique] [type]
    !exit                                          Quit
`)
	case "!status":
		status, err := s.Client.Status()
		if err != nil {
			return err
		}
		statusJson, _ := json.Marshal(status)
		fmt.Println(string(statusJson))
	case "!tables":
		tables, err := s.Client.ListTables(s.Database)
		if err != nil {
			return err
		}
		for _, table := range tables {
			fmt.Println(table)
		}
	case "!table":
		if len(args) != 1 {
			return errors.New("usage: !table <name>")
		}
		table, err := s.Client.GetTable(s.Database, args[0])
		if err != nil {
			return err
		}
		printTable(table)
	case "!use":
		if len(args) != 1 {
			return errors.New("usage: !use <database>")
		}
		s.Database = args[0]
	case "!begin":
		readOnly := len(args) > 0 && strings.EqualFold(args[0], "readonly")
		result, err := s.Client.Begin(readOnly)
		if err != nil {
			return err
		}
		mode := "read-write"
		if result.ReadOnly {
			mode = "read-only"
		}
		fmt.Printf("Began %s transaction %s at version %d\n", mode, result.TxnID, result.Version)
	case "!commit":
		result, err := s.Client.Commit()
		if err != nil {
			return err
		}
		fmt.Printf("Committed transaction %s\n", result.TxnID)
	case "!rollback":
		result, err := s.Client.Rollback()
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back transaction %s\n", result.TxnID)
	case "!create-database":
		if len(args) != 1 {
			return errors.New("usage: !create-database <name>")
		}
		return s.run(plan.NewCreateDatabasePlan(args[0]))
	case "!create-table":
		p, err := parseCreateTable(s.Database, args)
		if err != nil {
			return err
		}
		return s.run(p)
	case "!create-index":
		p, err := parseCreateIndex(s.Database, args)
		if err != nil {
			return err
		}
		return s.run(p)
	default:
		return errors.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func (s *Shell) run(p *plan.CreatePlan) error {
	result, err := s.Client.Execute(p)
	if err != nil {
		return err
	}
	if result.Error != "" {
		fmt.Printf("%s: %s\n", result.Status, result.Error)
		return nil
	}
	fmt.Println(result.Status)
	return nil
}

func printTable(table *session.TableInfo) {
	fmt.Printf("%s.%s\n", table.Database, table.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, column := range table.Columns {
		fmt.Fprintf(w, "  %s\n", column.String())
	}
	for _, index := range table.Indexes {
		unique := ""
		if index.Unique {
			unique = "UNIQUE "
		}
		fmt.Fprintf(w, "  %sINDEX %s\t%s\t(%s)\n", unique, index.Name, index.Type, strings.Join(index.Columns, ", "))
	}
	for _, fk := range table.ForeignKeys {
		fmt.Fprintf(w, "  FOREIGN KEY (%s)\tREFERENCES %s(%s)\tON UPDATE %s ON DELETE %s\n",
			strings.Join(fk.GetFKColumnNames(), ", "), fk.GetSinkTableName(),
			strings.Join(fk.GetPKColumnNames(), ", "), fk.GetUpdateAction(), fk.GetDeleteAction())
	}
	if len(table.ForeignKeySources) > 0 {
		fmt.Fprintf(w, "  REFERENCED BY\t%s\n", strings.Join(table.ForeignKeySources, ", "))
	}
	w.Flush()
}

func (s *Shell) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sprout> ",
		HistoryFile:     s.HistoryPath,
		AutoComplete:    s.CreateCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	s.Editor = rl

	for {
		input, err := rl.Readline()
		if err != nil {
			break
		}
		line := strings.TrimSpace(input)
		if line == "" {
			continue
		}
		if line == "!exit" {
			break
		}
		if err := s.Execute(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
	return nil
}

func (s *Shell) CreateCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("!help"),
		readline.PcItem("!status"),
		readline.PcItem("!tables"),
		readline.PcItem("!table"),
		readline.PcItem("!use"),
		readline.PcItem("!begin", readline.PcItem("readonly")),
		readline.PcItem("!commit"),
		readline.PcItem("!rollback"),
		readline.PcItem("!create-database"),
		readline.PcItem("!create-table"),
		readline.PcItem("!create-index"),
		readline.PcItem("!exit"),
	)
}

func main() {
	opts := ParseArgs()

	shell, err := NewShell(opts.Host, opts.Port, opts.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer shell.Client.Close()

	if opts.Command != "" {
		if err := shell.Execute(opts.Command); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := shell.Run(); err != nil {
		log.Fatal(err)
	}
}
