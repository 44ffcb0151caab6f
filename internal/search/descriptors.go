package search

import (
	"strings"

	"github.com/inkhaven/inkhaven-backend/internal/blog"
)

// Posts searches a snapshot of the posts collection. The query is matched
// against title, description, author and every tag.
func Posts(items []blog.Post, f Filters) Result[blog.Post] {
	return Run(items, f, postDescriptor)
}

// Comments searches a snapshot of the comments collection.
func Comments(items []blog.Comment, f Filters) Result[blog.Comment] {
	return Run(items, f, commentDescriptor)
}

// Images searches a snapshot of the image metadata collection.
func Images(items []blog.Image, f Filters) Result[blog.Image] {
	return Run(items, f, imageDescriptor)
}

var postDescriptor = Descriptor[blog.Post]{
	TextFields: func(p blog.Post) []string {
		fields := []string{p.Title, p.Description, p.Author}
		return append(fields, p.Tags...)
	},
	Tags:   func(p blog.Post) []string { return p.Tags },
	Author: func(p blog.Post) string { return p.Author },
	Date:   func(p blog.Post) string { return p.Date },
	SortKeys: map[string]func(blog.Post) string{
		"title":  func(p blog.Post) string { return p.Title },
		"author": func(p blog.Post) string { return p.Author },
	},
	SuggestionTokens: func(p blog.Post) []string {
		tokens := strings.Fields(p.Title)
		tokens = append(tokens, strings.Fields(p.Description)...)
		return append(tokens, p.Tags...)
	},
}

var commentDescriptor = Descriptor[blog.Comment]{
	TextFields: func(c blog.Comment) []string {
		return []string{c.Author, c.Content, c.PostSlug}
	},
	Author: func(c blog.Comment) string { return c.Author },
	Status: func(c blog.Comment) string { return c.Status },
	Date:   func(c blog.Comment) string { return c.CreatedAt },
	SortKeys: map[string]func(blog.Comment) string{
		"author": func(c blog.Comment) string { return c.Author },
	},
	SuggestionTokens: func(c blog.Comment) []string {
		// author names go in whole so multi-word names suggest as one entry
		tokens := strings.Fields(c.Content)
		return append(tokens, c.Author)
	},
}

var imageDescriptor = Descriptor[blog.Image]{
	TextFields: func(i blog.Image) []string {
		return []string{i.OriginalName, i.Alt, i.Description}
	},
	Date:    func(i blog.Image) string { return i.UploadedAt },
	SizeKey: func(i blog.Image) int64 { return i.Size },
	SortKeys: map[string]func(blog.Image) string{
		"title": func(i blog.Image) string { return i.OriginalName },
	},
	SuggestionTokens: func(i blog.Image) []string {
		return splitFilename(i.OriginalName)
	},
}

// splitFilename breaks an uploaded filename into tokens on the separators
// commonly found in filenames.
func splitFilename(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
}

// AvailableTags lists the distinct tags across posts, first-seen order.
func AvailableTags(posts []blog.Post) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range posts {
		for _, tag := range p.Tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// AvailableAuthors lists the distinct post authors, first-seen order.
func AvailableAuthors(posts []blog.Post) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range posts {
		if p.Author == "" {
			continue
		}
		if _, dup := seen[p.Author]; dup {
			continue
		}
		seen[p.Author] = struct{}{}
		out = append(out, p.Author)
	}
	return out
}
