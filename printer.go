// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Print reads every bean from in against the stream layout and writes a
// human-readable dump to w. Invalid records are reported inline and
// reading continues with the next record.
func Print(w io.Writer, s *StreamDefinition, in io.Reader) error {
	reader := s.NewReader(in)
	defer reader.Close()

	var i int
	for {
		bean, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var invalid *InvalidRecordError
			if errors.As(err, &invalid) {
				i++
				if err := printHeader(w, i, invalid.Context.RecordName, reader.LineNumber()); err != nil {
					return err
				}
				for _, fe := range invalid.Context.FieldErrors {
					_, err = fmt.Fprintf(w, "%s (invalid): %s\n", fe.Field, fe.Message)
					if err != nil {
						return err
					}
				}
				continue
			}
			return err
		}

		i++
		if err := printHeader(w, i, reader.RecordName(), reader.LineNumber()); err != nil {
			return err
		}
		if err := printBean(w, s.Record(reader.RecordName()), bean); err != nil {
			return err
		}
	}
}

// printHeader writes a banner naming the record and its line number.
func printHeader(w io.Writer, i int, recordName string, line int) error {
	if i > 1 {
		if _, err := fmt.Fprintln(w, ""); err != nil {
			return err
		}
	}
	pad := strings.Repeat(" ", 16)
	header := fmt.Sprintf("%s%s[%d] line %d%s", pad, recordName, i, line, pad)
	rule := strings.Repeat("-", len(header))
	_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", rule, header, rule)
	return err
}

func printBean(w io.Writer, r *RecordDefinition, bean any) error {
	if r == nil {
		_, err := fmt.Fprintf(w, "%v\n", bean)
		return err
	}
	for _, f := range r.fields {
		if f.accessor == nil {
			continue
		}
		value, err := f.accessor.Get(bean)
		if err != nil {
			return err
		}
		if f.collection {
			values, _ := value.([]any)
			if values == nil {
				values = collectionValues(value)
			}
			if _, err := fmt.Fprintf(w, "%s (array(%d)):\n", f.name, len(values)); err != nil {
				return err
			}
			for _, v := range values {
				if _, err := fmt.Fprintf(w, "    - %v\n", v); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %v\n", f.name, value); err != nil {
			return err
		}
	}
	return nil
}
