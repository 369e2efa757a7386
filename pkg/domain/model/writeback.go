package model

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// WriteBackChange carries locally edited values to push to the sheet. A nil
// field keeps whatever the sheet holds.
type WriteBackChange struct {
	BusinessKey         string
	AssignedCluster     *string
	AssignedOffice      *string
	ExternalStatusLabel *string
	ResponseMessage     *string
}

// WriteBackChangeFromCase builds a change carrying every whitelisted field of c
func WriteBackChangeFromCase(c *Case) WriteBackChange {
	change := WriteBackChange{
		BusinessKey:         c.BusinessKey,
		AssignedCluster:     StringPtr(c.AssignedCluster),
		AssignedOffice:      StringPtr(c.AssignedOffice),
		ExternalStatusLabel: StringPtr(c.ExternalStatusLabel),
	}
	if c.ResponseMessage != nil {
		change.ResponseMessage = StringPtr(*c.ResponseMessage)
	}
	return change
}

// WriteBackColumns are the 0-based sheet column positions of the fields that
// flow back to the sheet. Everything else in the row is left untouched.
type WriteBackColumns struct {
	Key                 int `toml:"key"`
	AssignedCluster     int `toml:"cluster"`
	AssignedOffice      int `toml:"office"`
	ExternalStatusLabel int `toml:"external_status"`
	ResponseMessage     int `toml:"response_message"`
}

// DefaultWriteBackColumns matches the production sheet layout: key in A,
// cluster in D, office in I, status label in M, response message in N.
var DefaultWriteBackColumns = WriteBackColumns{
	Key:                 0,
	AssignedCluster:     3,
	AssignedOffice:      8,
	ExternalStatusLabel: 12,
	ResponseMessage:     13,
}

// Validate checks that all positions are usable and distinct
func (c WriteBackColumns) Validate() error {
	seen := map[int]string{}
	for name, pos := range map[string]int{
		"key":              c.Key,
		"cluster":          c.AssignedCluster,
		"office":           c.AssignedOffice,
		"external_status":  c.ExternalStatusLabel,
		"response_message": c.ResponseMessage,
	} {
		if pos < 0 || pos >= 26*27 {
			return goerr.New("write-back column out of range", goerr.V("column", name), goerr.V("position", pos))
		}
		if other, ok := seen[pos]; ok {
			return goerr.New("write-back columns overlap", goerr.V("column", name), goerr.V("other", other))
		}
		seen[pos] = name
	}
	return nil
}

// Last returns the right-most column touched by a write-back
func (c WriteBackColumns) Last() int {
	return max(c.AssignedCluster, c.AssignedOffice, c.ExternalStatusLabel, c.ResponseMessage)
}

// ColumnLetter converts a 0-based column position to its A1 letters
func ColumnLetter(pos int) string {
	var sb strings.Builder
	n := pos + 1
	var letters []byte
	for n > 0 {
		n--
		letters = append(letters, byte('A'+n%26))
		n /= 26
	}
	for i := len(letters) - 1; i >= 0; i-- {
		sb.WriteByte(letters[i])
	}
	return sb.String()
}

// A1Range builds a quoted A1 range for a tab name
func A1Range(tab, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(tab, "'", "''"), cells)
}

// A1Tab addresses a whole tab
func A1Tab(tab string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(tab, "'", "''"))
}
