package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"headcanonhub/internal/generator"
	"headcanonhub/internal/headcanon"
)

var (
	genFandom string
	genTone   string
	genCount  int
	genSeed   uint64
	genCorpus string
)

var generateCmd = &cobra.Command{
	Use:   "generate <character>",
	Short: "Generate headcanons for one character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := characterArg(args[0])
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		out, err := engine.Generate(name, genFandom, genTone, genCount)
		if err != nil {
			return err
		}
		printList(cmd, out)
		return nil
	},
}

var shipCmd = &cobra.Command{
	Use:   "ship <character1> <character2>",
	Short: "Generate headcanons for a pairing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name1, err := characterArg(args[0])
		if err != nil {
			return err
		}
		name2, err := characterArg(args[1])
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		out, err := engine.GenerateShip(name1, name2, genTone, genCount)
		if err != nil {
			return err
		}
		printList(cmd, out)
		return nil
	},
}

var tonesCmd = &cobra.Command{
	Use:   "tones",
	Short: "List available tones",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range headcanon.ToneOptions() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %s\n", t.Icon, t.Key, t.Description)
		}
	},
}

var fandomsCmd = &cobra.Command{
	Use:   "fandoms",
	Short: "List popular fandoms",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, f := range headcanon.PopularFandoms() {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, shipCmd} {
		c.Flags().StringVarP(&genTone, "tone", "t", "random", "wholesome, funny, dark, emotional or random")
		c.Flags().IntVarP(&genCount, "count", "n", 4, "number of headcanons (3-5)")
		c.Flags().Uint64Var(&genSeed, "seed", 0, "random seed for reproducible output (0 = random)")
		c.Flags().StringVar(&genCorpus, "corpus", "", "template corpus YAML (default: built in)")
	}
	generateCmd.Flags().StringVarP(&genFandom, "fandom", "f", "", "fandom or medium, e.g. \"anime\"")
}

// characterArg applies the same name rules as the HTTP API.
func characterArg(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.New("character name is required")
	}
	if utf8.RuneCountInString(name) > generator.MaxSubjectLength {
		return "", fmt.Errorf("character name is too long (max %d characters)", generator.MaxSubjectLength)
	}
	return name, nil
}

func newEngine() (*headcanon.Engine, error) {
	var corpus *headcanon.Corpus
	if genCorpus != "" {
		c, err := headcanon.LoadCorpus(genCorpus)
		if err != nil {
			return nil, err
		}
		corpus = c
	}
	var opts []headcanon.Option
	if genSeed != 0 {
		opts = append(opts, headcanon.WithRand(rand.New(rand.NewPCG(genSeed, genSeed))))
	}
	return headcanon.NewEngine(corpus, opts...), nil
}

func printList(cmd *cobra.Command, items []string) {
	for i, s := range items {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, s)
	}
}
