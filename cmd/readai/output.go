package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pbaille/readai/internal/config"
	"github.com/pbaille/readai/internal/domain"
	"gopkg.in/yaml.v3"
)

// printResult writes v as JSON or YAML, or as the text produced by text.
func printResult(w io.Writer, format string, v any, text func() string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		if text == nil {
			return printResult(w, "yaml", v, nil)
		}
		_, err := io.WriteString(w, text())
		return err
	}
}

func formatExplanation(x *domain.Explanation) string {
	var sb strings.Builder
	sb.WriteString(x.Explanation)
	sb.WriteString("\n")
	if len(x.KeyPoints) > 0 {
		sb.WriteString("\nKey points:\n")
		for _, p := range x.KeyPoints {
			fmt.Fprintf(&sb, "  - %s\n", p)
		}
	}
	if len(x.AdditionalResources) > 0 {
		sb.WriteString("\nFurther reading:\n")
		for _, r := range x.AdditionalResources {
			fmt.Fprintf(&sb, "  - %s: %s\n", r.Title, r.Description)
		}
	}
	return sb.String()
}

func formatSources(list *domain.SourceList) string {
	if len(list.Sources) == 0 {
		return "No sources suggested.\n"
	}
	var sb strings.Builder
	for _, s := range list.Sources {
		fmt.Fprintf(&sb, "%s", s.Title)
		if s.Author != "" {
			fmt.Fprintf(&sb, ", %s", s.Author)
		}
		if s.Year != "" {
			fmt.Fprintf(&sb, " (%s)", s.Year)
		}
		sb.WriteString("\n")
		if s.Description != "" {
			fmt.Fprintf(&sb, "    %s\n", s.Description)
		}
	}
	return sb.String()
}

// redact returns a copy of cfg with secrets masked.
func redact(cfg *config.Config) config.Config {
	out := *cfg
	if out.AI.APIKey != "" {
		out.AI.APIKey = "********"
	}
	out.Seed.Password = "********"
	return out
}
