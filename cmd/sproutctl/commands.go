package main

import (
	"strings"

	"github.com/pkg/errors"

	"sproutDB/sql"
	"sproutDB/sql/catalog"
	"sproutDB/sql/plan"
)

// parseCreateTable builds a plan from
//
//	<table> <column>:<type>[:pk][:null][:unique][:<length>] ... [fk:<col>[,<col>]:<sink>:<col>[,<col>][:<on update>[:<on delete>]]] ...
//
// Actions are written with underscores, e.g. set_null.
func parseCreateTable(database string, args []string) (*plan.CreatePlan, error) {
	if len(args) < 2 {
		return nil, errors.New("usage: !create-table <table> <column>:<type>[:pk][:null][:unique] ... [fk:<cols>:<sink>:<cols>[:<update>[:<delete>]]]")
	}
	var (
		columns     []*catalog.Column
		foreignKeys []*catalog.ForeignKey
	)
	for _, arg := range args[1:] {
		parts := strings.Split(arg, ":")
		if strings.EqualFold(parts[0], "fk") {
			fk, err := parseForeignKey(parts[1:])
			if err != nil {
				return nil, errors.Wrapf(err, "foreign key %s", arg)
			}
			foreignKeys = append(foreignKeys, fk)
			continue
		}
		column, err := parseColumn(parts)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", arg)
		}
		columns = append(columns, column)
	}
	return plan.NewCreateTablePlan(database, args[0], catalog.NewSchema(columns...), foreignKeys), nil
}

func parseColumn(parts []string) (*catalog.Column, error) {
	if len(parts) < 2 {
		return nil, errors.New("want <name>:<type>")
	}
	dataType, err := sql.ParseDataType(parts[1])
	if err != nil {
		return nil, err
	}
	column := &catalog.Column{Name: parts[0], DataType: dataType}
	for _, flag := range parts[2:] {
		switch strings.ToLower(flag) {
		case "pk":
			column.PrimaryKey = true
		case "null":
			column.NullAble = true
		case "unique":
			column.Unique = true
		default:
			length := 0
			for _, r := range flag {
				if r < '0' || r > '9' {
					return nil, errors.Errorf("unknown column flag %s", flag)
				}
				length = length*10 + int(r-'0')
			}
			column.Length = length
		}
	}
	return column, nil
}

func parseForeignKey(parts []string) (*catalog.ForeignKey, error) {
	if len(parts) < 3 {
		return nil, errors.New("want fk:<cols>:<sink>:<cols>")
	}
	actions := []catalog.FKActionType{catalog.FKNoAction, catalog.FKNoAction}
	for i, raw := range parts[3:] {
		if i >= len(actions) {
			return nil, errors.New("too many actions")
		}
		action, err := catalog.ParseFKAction(strings.ReplaceAll(raw, "_", " "))
		if err != nil {
			return nil, err
		}
		actions[i] = action
	}
	return catalog.NewForeignKey("", splitList(parts[0]), parts[1], splitList(parts[2]), actions[0], actions[1]), nil
}

// parseCreateIndex builds a plan from <table> <index> <col>[,<col>] [unique] [<type>].
func parseCreateIndex(database string, args []string) (*plan.CreatePlan, error) {
	if len(args) < 3 {
		return nil, errors.New("usage: !create-index <table> <index> <col>[,<col>] [unique] [btree|bwtree|hash|skiplist]")
	}
	unique := false
	kind := catalog.IndexBWTree
	for _, arg := range args[3:] {
		if strings.EqualFold(arg, "unique") {
			unique = true
			continue
		}
		parsed, err := catalog.ParseIndexType(arg)
		if err != nil {
			return nil, err
		}
		kind = parsed
	}
	return plan.NewCreateIndexPlan(database, args[0], args[1], kind, unique, splitList(args[2])), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
