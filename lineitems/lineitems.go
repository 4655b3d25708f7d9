// Package lineitems decodes the free-form items snapshot stored on an order.
//
// Stored payloads come in two shapes: a JSON array (of {"name","quantity"}
// objects or plain strings) or a comma separated list of names. Parse accepts
// both and never fails; anything that is not a JSON array is read as text.
package lineitems

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Kind int

const (
	Raw Kind = iota
	Structured
)

func (k Kind) String() string {
	if k == Structured {
		return "structured"
	}
	return "raw"
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s (x%d)", i.Name, i.Quantity)
}

// Payload is a decoded items field. Raw keeps the stored text as is.
type Payload struct {
	Kind  Kind
	Items []Item
	Raw   string
}

var maxQuantity = decimal.NewFromInt(math.MaxInt32)

func Parse(raw string) Payload {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Payload{Kind: Raw, Items: []Item{}, Raw: raw}
	}

	if items, ok := decodeList(s); ok {
		return Payload{Kind: Structured, Items: items, Raw: raw}
	}

	return Payload{Kind: Raw, Items: splitNames(s), Raw: raw}
}

// Count is the number of line items in a stored payload.
func Count(raw string) int {
	return len(Parse(raw).Items)
}

// Display renders items as "name (xN)".
func Display(items []Item) []string {
	return lo.Map(items, func(i Item, _ int) string {
		return i.String()
	})
}

// Encode renders items as the canonical JSON array understood by Parse.
func Encode(items []Item) string {
	if items == nil {
		items = []Item{}
	}

	b, err := json.Marshal(items)
	if err != nil {
		// []Item always marshals.
		panic(err)
	}

	return string(b)
}

func (p Payload) Display() []string {
	return Display(p.Items)
}

func decodeList(s string) ([]Item, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(s), &elems); err != nil || elems == nil {
		return nil, false
	}

	return lo.Map(elems, func(e json.RawMessage, _ int) Item {
		return decodeItem(e)
	}), true
}

func isNull(e json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(e), []byte("null"))
}

func decodeItem(e json.RawMessage) Item {
	var name string
	if err := json.Unmarshal(e, &name); err == nil && !isNull(e) {
		return Item{Name: name, Quantity: 1}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e, &obj); err == nil && obj != nil {
		if n, ok := obj["name"]; ok {
			return Item{Name: text(n), Quantity: quantity(obj["quantity"])}
		}
	}

	return Item{Name: text(e), Quantity: 1}
}

// text renders a JSON value as a name: strings as is, anything else
// (null included) as compact JSON.
func text(e json.RawMessage) string {
	var s string
	if err := json.Unmarshal(e, &s); err == nil && !isNull(e) {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, e); err != nil {
		return string(e)
	}

	return buf.String()
}

// quantity accepts positive integral numbers or numeric strings and falls
// back to 1 for everything else.
func quantity(e json.RawMessage) int {
	if len(e) == 0 {
		return 1
	}

	dec := json.NewDecoder(bytes.NewReader(e))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 1
	}

	var str string
	switch x := v.(type) {
	case json.Number:
		str = x.String()
	case string:
		str = strings.TrimSpace(x)
	default:
		return 1
	}

	d, err := decimal.NewFromString(str)
	if err != nil || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(maxQuantity) {
		return 1
	}

	return int(d.IntPart())
}

func splitNames(s string) []Item {
	items := []Item{}
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		items = append(items, Item{Name: name, Quantity: 1})
	}

	return items
}
