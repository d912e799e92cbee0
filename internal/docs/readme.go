package docs

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/internal/config"
	"github.com/keshon/lavaplay/pkg/cmd"
)

// CommandSections renders the registry as markdown, one section per
// category, listing subcommands under their parent.
func CommandSections(registry *cmd.Registry) string {
	commands := registry.GetAll()
	slices.SortStableFunc(commands, func(a, b cmd.Command) int {
		ca, cb := category(a), category(b)
		if c := cmp.Compare(config.CategoryWeight(ca), config.CategoryWeight(cb)); c != 0 {
			return c
		}
		return cmp.Compare(ca, cb)
	})

	var buf strings.Builder
	current := ""
	for _, c := range commands {
		if cat := category(c); cat != current || buf.Len() == 0 {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			current = cat
			fmt.Fprintf(&buf, "### %s\n\n", current)
		}

		fmt.Fprintf(&buf, "- **/%s**: %s\n", c.Name(), c.Description())
		def := command.Definition(c)
		if def == nil {
			continue
		}
		for _, opt := range def.Options {
			if opt.Type != discordgo.ApplicationCommandOptionSubCommand {
				continue
			}
			fmt.Fprintf(&buf, "  - `/%s %s%s`: %s\n", c.Name(), opt.Name, usage(opt.Options), opt.Description)
		}
	}
	return buf.String()
}

// UpdateReadme renders tmplPath with the command sections into outPath.
func UpdateReadme(registry *cmd.Registry, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	data := struct {
		CommandSections string
	}{
		CommandSections: CommandSections(registry),
	}
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return f.Close()
}

func category(c cmd.Command) string {
	if meta, ok := cmd.Root(c).(command.DiscordMeta); ok {
		return meta.Category()
	}
	return "Other"
}

func usage(opts []*discordgo.ApplicationCommandOption) string {
	var b strings.Builder
	for _, o := range opts {
		if o.Required {
			fmt.Fprintf(&b, " <%s>", o.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", o.Name)
		}
	}
	return b.String()
}
