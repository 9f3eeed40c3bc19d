// Command isavopt is the CLI front end for the optimizer: assemble and
// disassemble programs in the textual dialect, run the optimize pipeline
// on one program, or drive a batch of programs through a worker pool.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vectorwave/isavopt/pkg/asmtext"
	"github.com/vectorwave/isavopt/pkg/batch"
	"github.com/vectorwave/isavopt/pkg/codec"
	"github.com/vectorwave/isavopt/pkg/config"
	"github.com/vectorwave/isavopt/pkg/diag"
	"github.com/vectorwave/isavopt/pkg/isa"
	"github.com/vectorwave/isavopt/pkg/optimizer"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "isavopt",
		Short: "ISA-V optimizer — rename, eliminate dead code, allocate registers, hide latency",
	}

	rootCmd.AddCommand(
		newOptimizeCmd(),
		newAsmCmd(),
		newDisasmCmd(),
		newBatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readProgram loads a program from path, guessing the wire format from the
// .bin extension and falling back to the textual dialect otherwise.
func readProgram(path string) (isa.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return isa.Program{}, err
	}
	if strings.HasSuffix(path, ".bin") {
		return codec.DecodeProgram(data)
	}
	return asmtext.Parse(string(data))
}

func writeProgram(path string, p isa.Program) error {
	var out []byte
	if strings.HasSuffix(path, ".bin") {
		out = codec.EncodeProgram(p)
	} else {
		out = []byte(asmtext.FormatProgram(p) + "\n")
	}
	return os.WriteFile(path, out, 0o644)
}

func newOptimizeCmd() *cobra.Command {
	var output string
	var noRename bool
	var scalarMode bool
	var verbose bool
	var maxTemps int
	var maxAttrs int

	cmd := &cobra.Command{
		Use:   "optimize [program]",
		Short: "Run the full optimize pipeline on a single program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProgram(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			arch := config.Architecture{MaxTemporalRegisters: maxTemps, MaxInputAttributes: maxAttrs}
			sink := diag.Stderr

			var out isa.Program
			var stats optimizer.Stats
			if noRename {
				out, stats, err = optimizer.Optimize(p, arch, true, scalarMode, verbose, sink)
			} else {
				out, stats, err = optimizer.Pipeline(p, arch, scalarMode, verbose, sink)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "names used: %d, max live registers: %d, dce rounds: %d\n",
				stats.NamesUsed, stats.MaxLiveRegisters, stats.DCERounds)
			fmt.Fprintf(os.Stderr, "%d instructions in, %d instructions out\n",
				len(p.Instructions), len(out.Instructions))

			if output == "" {
				fmt.Println(asmtext.FormatProgram(out))
				return nil
			}
			return writeProgram(output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.bin for wire format, otherwise text); default stdout text")
	cmd.Flags().BoolVar(&noRename, "no-rename", false, "Skip renaming and the attribute/scalarize/wait-point stages, running only the core driver")
	cmd.Flags().BoolVar(&scalarMode, "scalar", false, "Lower SIMD4 instructions to scalar form before allocation")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report each pass's effect to stderr")
	cmd.Flags().IntVar(&maxTemps, "max-temps", config.Default.MaxTemporalRegisters, "Temporal register file size")
	cmd.Flags().IntVar(&maxAttrs, "max-attrs", config.Default.MaxInputAttributes, "Input attribute slot count")
	return cmd
}

func newAsmCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "asm [program.asm]",
		Short: "Assemble the textual dialect into the fixed wire format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := asmtext.Parse(string(src))
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			out := codec.EncodeProgram(p)
			if output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".bin"
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d bytes (%d instructions) to %s\n", len(out), len(p.Instructions), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output .bin path (default: input path with .bin extension)")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm [program.bin]",
		Short: "Disassemble the fixed wire format into the textual dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, err := codec.DecodeProgram(data)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}
			fmt.Println(asmtext.FormatProgram(p))
			return nil
		},
	}
	return cmd
}

// manifestEntry names one program file within a batch manifest.
type manifestEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func newBatchCmd() *cobra.Command {
	var numWorkers int
	var scalarMode bool
	var verbose bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "batch [manifest.json]",
		Short: "Optimize every program named in a JSON manifest across a worker pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var entries []manifestEntry
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("parsing manifest %s: %w", args[0], err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("manifest %s names no programs", args[0])
			}

			manifestDir := filepath.Dir(args[0])
			jobs := make([]batch.Job, 0, len(entries))
			for i, e := range entries {
				path := e.Path
				if !filepath.IsAbs(path) {
					path = filepath.Join(manifestDir, path)
				}
				p, err := readProgram(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				jobs = append(jobs, batch.Job{Index: i, Name: e.Name, Program: p})
			}

			pool := batch.NewPool(numWorkers, config.Default, scalarMode)
			pool.Verbose = verbose
			table := pool.Run(jobs)

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			failed := 0
			for _, r := range table.Results() {
				if r.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "  [%d] %s: FAILED: %v\n", r.Index, r.Name, r.Err)
					continue
				}
				fmt.Printf("  [%d] %s: %d instructions, %d live registers\n",
					r.Index, r.Name, len(r.Program.Instructions), r.Stats.MaxLiveRegisters)
				if outDir != "" {
					dst := filepath.Join(outDir, r.Name+".asm")
					if err := writeProgram(dst, r.Program); err != nil {
						return fmt.Errorf("writing %s: %w", dst, err)
					}
				}
			}

			completed, poolFailed := pool.Stats()
			fmt.Printf("\n%d/%d programs optimized, %d failed\n", completed-poolFailed, completed, poolFailed)
			if failed > 0 {
				return fmt.Errorf("%d programs failed to optimize", failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&numWorkers, "workers", 0, "Number of workers (0 = NumCPU)")
	cmd.Flags().BoolVar(&scalarMode, "scalar", false, "Lower SIMD4 instructions to scalar form before allocation")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report progress to stdout while the pool runs")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory to write each optimized program's text form into")
	return cmd
}
