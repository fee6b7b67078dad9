// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package confstore

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the result of coercing a free-form string input.
type ValueKind int

const (
	KindRawString ValueKind = iota
	KindBool
	KindNull
	KindNumber
	KindBigIntString
	KindParsedJSON
)

// CoercedValue is the tagged result of CoerceString. Value holds the Go
// representation to store: bool, nil, float64, string, or a parsed JSON
// structure.
type CoercedValue struct {
	Kind  ValueKind
	Value any
}

// maxSafeInteger is the largest integer exactly representable in a float64,
// matching the precision boundary of JSON numbers.
const maxSafeInteger = int64(1) << 53

// CoerceString interprets a free-form string argument as a typed
// configuration value. It is boundary logic for CLI and chat-style input;
// the store core accepts already-typed values and never coerces.
//
// Rules: "true"/"false" become booleans, "null" becomes nil, integer and
// decimal literals become numbers unless the integer would lose precision
// as a float64 (kept as a string in that case), JSON object/array/quoted
// string literals are parsed, and anything else stays a literal string.
func CoerceString(input string) CoercedValue {
	switch input {
	case "true":
		return CoercedValue{Kind: KindBool, Value: true}
	case "false":
		return CoercedValue{Kind: KindBool, Value: false}
	case "null":
		return CoercedValue{Kind: KindNull, Value: nil}
	}

	if isIntegerLiteral(input) {
		i, err := strconv.ParseInt(input, 10, 64)
		if err != nil || i > maxSafeInteger || i < -maxSafeInteger {
			// Integer too large for exact float64 representation.
			return CoercedValue{Kind: KindBigIntString, Value: input}
		}
		return CoercedValue{Kind: KindNumber, Value: float64(i)}
	}
	// ParseFloat accepts "inf" and "nan" spellings; those stay strings.
	if f, err := strconv.ParseFloat(input, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return CoercedValue{Kind: KindNumber, Value: f}
	}

	if len(input) > 0 {
		switch input[0] {
		case '{', '[', '"':
			var parsed any
			if err := json.Unmarshal([]byte(input), &parsed); err == nil {
				return CoercedValue{Kind: KindParsedJSON, Value: parsed}
			}
		}
	}

	return CoercedValue{Kind: KindRawString, Value: input}
}

func isIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) == -1
}
