package catalog

import (
	"bytes"
	"encoding/gob"
	"strings"

	"github.com/pkg/errors"
)

// FKActionType is the referential action taken on the source rows when the
// referenced sink row is updated or deleted.
type FKActionType uint8

const (
	FKNoAction FKActionType = iota
	FKCascade
	FKRestrict
	FKSetNull
	FKSetDefault
)

func (a FKActionType) String() string {
	switch a {
	case FKNoAction:
		return "NO ACTION"
	case FKCascade:
		return "CASCADE"
	case FKRestrict:
		return "RESTRICT"
	case FKSetNull:
		return "SET NULL"
	case FKSetDefault:
		return "SET DEFAULT"
	default:
		return "INVALID"
	}
}

func (a FKActionType) Valid() bool {
	return a <= FKSetDefault
}

func ParseFKAction(s string) (FKActionType, error) {
	switch strings.Join(strings.Fields(strings.ToUpper(s)), " ") {
	case "", "NO ACTION", "NOACTION":
		return FKNoAction, nil
	case "CASCADE":
		return FKCascade, nil
	case "RESTRICT":
		return FKRestrict, nil
	case "SET NULL":
		return FKSetNull, nil
	case "SET DEFAULT":
		return FKSetDefault, nil
	}
	return FKNoAction, errors.Errorf("unknown foreign key action %s", s)
}

// ForeignKey is immutable once built. The source table owns it; the sink
// table only records the source table name.
type ForeignKey struct {
	name          string
	sourceColumns []string
	sinkTable     string
	sinkColumns   []string
	updateAction  FKActionType
	deleteAction  FKActionType
}

func NewForeignKey(name string, sourceColumns []string, sinkTable string, sinkColumns []string, updateAction, deleteAction FKActionType) *ForeignKey {
	return &ForeignKey{
		name:          name,
		sourceColumns: append([]string(nil), sourceColumns...),
		sinkTable:     sinkTable,
		sinkColumns:   append([]string(nil), sinkColumns...),
		updateAction:  updateAction,
		deleteAction:  deleteAction,
	}
}

func (fk *ForeignKey) GetName() string {
	return fk.name
}

func (fk *ForeignKey) GetFKColumnNames() []string {
	return append([]string(nil), fk.sourceColumns...)
}

func (fk *ForeignKey) GetSinkTableName() string {
	return fk.sinkTable
}

func (fk *ForeignKey) GetPKColumnNames() []string {
	return append([]string(nil), fk.sinkColumns...)
}

func (fk *ForeignKey) GetUpdateAction() FKActionType {
	return fk.updateAction
}

func (fk *ForeignKey) GetDeleteAction() FKActionType {
	return fk.deleteAction
}

// NeedsIndex reports whether an action other than NO ACTION may touch source rows,
// which then need an index on the source columns to be found.
func (fk *ForeignKey) NeedsIndex() bool {
	return fk.updateAction != FKNoAction || fk.deleteAction != FKNoAction
}

func (fk *ForeignKey) Validate() error {
	if len(fk.sourceColumns) == 0 {
		return errors.Wrap(ErrInvalidRequest, "foreign key without source columns")
	}
	for _, column := range fk.sourceColumns {
		if column == "" {
			return errors.Wrap(ErrInvalidRequest, "foreign key with empty source column")
		}
	}
	if fk.sinkTable == "" {
		return errors.Wrap(ErrInvalidRequest, "foreign key without sink table")
	}
	if len(fk.sinkColumns) != 0 && len(fk.sinkColumns) != len(fk.sourceColumns) {
		return errors.Wrapf(ErrInvalidRequest, "foreign key references %d columns with %d", len(fk.sinkColumns), len(fk.sourceColumns))
	}
	if !fk.updateAction.Valid() || !fk.deleteAction.Valid() {
		return errors.Wrap(ErrInvalidRequest, "foreign key with unknown action")
	}
	return nil
}

type foreignKeyWire struct {
	Name          string
	SourceColumns []string
	SinkTable     string
	SinkColumns   []string
	UpdateAction  FKActionType
	DeleteAction  FKActionType
}

func (fk *ForeignKey) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(foreignKeyWire{
		Name:          fk.name,
		SourceColumns: fk.sourceColumns,
		SinkTable:     fk.sinkTable,
		SinkColumns:   fk.sinkColumns,
		UpdateAction:  fk.updateAction,
		DeleteAction:  fk.deleteAction,
	})
	return buf.Bytes(), err
}

func (fk *ForeignKey) GobDecode(data []byte) error {
	var w foreignKeyWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return err
	}
	*fk = *NewForeignKey(w.Name, w.SourceColumns, w.SinkTable, w.SinkColumns, w.UpdateAction, w.DeleteAction)
	return nil
}
