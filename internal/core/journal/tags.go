package journal

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/neilberkman/ccjournal/internal/core/journalerr"
	"gopkg.in/yaml.v3"
)

// TagResult describes the outcome of AddTags
type TagResult struct {
	Path       string   `json:"filepath"`
	Tags       []string `json:"tags_after"`
	BackupPath string   `json:"backup_path,omitempty"`
	Changed    bool     `json:"changed"`
}

// AddTags merges tags into the header of the entry at name. Only the header
// region is rewritten; the transcript and later sections stay byte-identical.
// When backups are enabled the current content is copied first, on every
// call. Adding tags the entry already carries leaves the file untouched.
func (p *Persister) AddTags(name string, tags []string) (*TagResult, error) {
	const op = "add_journal_tags"

	if err := ValidateTags(tags); err != nil {
		return nil, journalerr.New(op, name, err)
	}
	add := NormalizeTags(tags)
	if len(add) == 0 {
		return nil, journalerr.Newf(op, name, journalerr.ErrInvalidInput, "at least one non-empty tag is required")
	}

	path, err := p.resolveEntry(op, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, journalerr.New(op, name, journalerr.ErrEntryNotFound)
	}
	if err != nil {
		return nil, journalerr.Persistence(op, path, err)
	}
	content := string(data)

	current, err := ParseHeader(content)
	if err != nil {
		return nil, journalerr.Newf(op, path, journalerr.ErrInvalidInput, "%v", err)
	}
	merged := MergeTags(current.Tags, add)

	result := &TagResult{Path: path, Tags: merged}

	if p.BackupsEnabled() {
		backupPath, err := p.backup(path, data)
		if err != nil {
			return nil, journalerr.Persistence(op, path, err)
		}
		result.BackupPath = backupPath
	}

	if slices.Equal(merged, current.Tags) {
		return result, nil
	}

	updated, err := rewriteTags(content, merged)
	if err != nil {
		return nil, journalerr.Newf(op, path, journalerr.ErrInvalidInput, "%v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, journalerr.Persistence(op, path, err)
	}
	tmpPath, err := p.writeTemp(p.guard.Root(), []byte(updated), info.Mode().Perm())
	if err != nil {
		return nil, journalerr.Persistence(op, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, journalerr.Persistence(op, path, err)
	}

	result.Changed = true
	if p.log != nil {
		p.log.Info().Str("path", path).Str("tags", strings.Join(merged, ",")).Msg("journal tags updated")
	}
	return result, nil
}

// rewriteTags replaces the tag list in the header region of content
func rewriteTags(content string, tags []string) (string, error) {
	header, body := SplitHeader(content)

	var frontMatter string
	visible := header
	if yamlBlock, rest, ok := splitFrontMatter(header); ok {
		updated, err := setFrontMatterTags(yamlBlock, tags)
		if err != nil {
			return "", err
		}
		frontMatter = frontMatterDelimiter + "\n" + updated + frontMatterDelimiter + "\n"
		visible = rest
	}

	return frontMatter + setTagsLine(visible, tags) + body, nil
}

// setFrontMatterTags updates the tags key of a YAML mapping, keeping every
// other key and its order
func setFrontMatterTags(yamlBlock string, tags []string) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlBlock), &doc); err != nil {
		return "", fmt.Errorf("front matter parse error: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return "", fmt.Errorf("front matter is not a mapping")
	}
	mapping := doc.Content[0]

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, tag := range tags {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tag})
	}

	replaced := false
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "tags" {
			mapping.Content[i+1] = seq
			replaced = true
			break
		}
	}
	if !replaced {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "tags"}, seq)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}
	return string(out), nil
}

// setTagsLine replaces the **Tags:** line of the visible header, inserting
// one after the date (or title) line when the entry has none
func setTagsLine(visible string, tags []string) string {
	lines := strings.Split(visible, "\n")
	line := tagsLine(tags)

	for i, l := range lines {
		if strings.HasPrefix(l, "**Tags:**") {
			lines[i] = line
			return strings.Join(lines, "\n")
		}
	}

	anchor := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "**Date:**") {
			anchor = i
			break
		}
		if strings.HasPrefix(l, "# ") && anchor == -1 {
			anchor = i
		}
	}
	if anchor == -1 {
		return line + "\n" + visible
	}
	return strings.Join(slices.Insert(lines, anchor+1, line), "\n")
}
