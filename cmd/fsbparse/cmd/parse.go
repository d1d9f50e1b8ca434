// Copyright (C) 2023 by Posit Software, PBC
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	fsb "github.com/rstudio/flat-stream-binding"
)

var (
	mappingFile string
	streamName  string
	dumpBeans   bool
)

func init() {
	ParseCmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "mapping file (required)")
	ParseCmd.Flags().StringVarP(&streamName, "stream", "s", "", "stream name from the mapping (required)")
	ParseCmd.Flags().BoolVar(&dumpBeans, "beans", false, "dump parsed beans instead of the field listing")
	ParseCmd.MarkFlagRequired("mapping")
	ParseCmd.MarkFlagRequired("stream")
}

var ParseCmd = &cobra.Command{
	Use:   "fsbparse [flags] file...",
	Short: "Parse flat record files",
	Long:  "Parses flat record files against a stream mapping and prints the result.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range args {
			_, err := os.Stat(f)
			if err != nil {
				return fmt.Errorf("unable to read %s: %s", f, err)
			}
		}

		factory := fsb.NewStreamFactory()
		if err := factory.Load(mappingFile); err != nil {
			return fmt.Errorf("error loading mapping %s: %s", mappingFile, err)
		}
		stream := factory.Stream(streamName)
		if stream == nil {
			return fmt.Errorf("mapping %s defines no stream '%s'", mappingFile, streamName)
		}

		for _, f := range args {
			dataFile, err := os.Open(f)
			if err != nil {
				return fmt.Errorf("unable to open %s for reading: %s", f, err)
			}
			if dumpBeans {
				err = dump(cmd.OutOrStdout(), stream, dataFile)
			} else {
				err = fsb.Print(cmd.OutOrStdout(), stream, dataFile)
			}
			dataFile.Close()
			if err != nil {
				return fmt.Errorf("error parsing %s: %s", f, err)
			}
		}

		return nil
	},
}

// dump reads every bean and spews its full structure. Invalid records
// are reported and skipped.
func dump(w io.Writer, stream *fsb.StreamDefinition, in io.Reader) error {
	reader := stream.NewReader(in)
	defer reader.Close()

	for {
		bean, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var invalid *fsb.InvalidRecordError
			if errors.As(err, &invalid) {
				fmt.Fprintf(w, "record '%s' at line %d is invalid:\n", invalid.Context.RecordName, invalid.Context.LineNumber)
				for _, fe := range invalid.Context.FieldErrors {
					fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
				}
				continue
			}
			return err
		}
		fmt.Fprintf(w, "%s (line %d):\n", reader.RecordName(), reader.LineNumber())
		spew.Fdump(w, bean)
	}
}
