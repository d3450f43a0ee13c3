package retrieval

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/utils"
)

// Block is one source's matched rows.
type Block struct {
	Source  string
	Columns []string
	Rows    []model.Payload

	encoded []string
}

// Payload is the ordered list of blocks sent to the model.
type Payload []Block

// RowCount is the number of rows across all blocks.
func (p Payload) RowCount() int {
	n := 0
	for _, b := range p {
		n += len(b.Rows)
	}
	return n
}

// String serializes the payload as a compact JSON array of
// {"source","columns","rows"} objects. An empty payload is "".
func (p Payload) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, blk := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(blockHead(blk.Source, blk.Columns))
		for j, row := range blk.encoded {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(row)
		}
		b.WriteString(blockTail)
	}
	b.WriteByte(']')
	return b.String()
}

const blockTail = "]}"

func blockHead(source string, columns []string) string {
	var b strings.Builder
	b.WriteString(`{"source":`)
	b.WriteString(jsonString(source))
	b.WriteString(`,"columns":[`)
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(jsonString(c))
	}
	b.WriteString(`],"rows":[`)
	return b.String()
}

func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func encodeRow(p model.Payload) string {
	b, _ := p.MarshalJSON()
	return string(b)
}

// blockOverhead is the size of an empty block with the given columns.
func blockOverhead(source string, columns []string) int {
	return utils.CharCount(blockHead(source, columns)) + len(blockTail)
}
