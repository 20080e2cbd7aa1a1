// Command docgen builds the renderer API reference from the annotation
// comments on the handlers in internal/api.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Endpoint is one annotated handler
type Endpoint struct {
	Title       string
	Route       string
	Description string
	Body        string
	Response    string
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reBody  = regexp.MustCompile(`// @Body: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("api", "internal/api", "directory holding the annotated handlers")
	out := flag.String("out", "docs/api.adoc", "where to write the reference")
	flag.Parse()

	endpoints, err := parseEndpoints(*apiDir)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *apiDir, err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", filepath.Dir(*out), err)
	}
	if err := os.WriteFile(*out, []byte(renderAsciiDoc(endpoints)), 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

// parseEndpoints scans the non-test Go files in dir. A block ends at its
// @Response line.
func parseEndpoints(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, file := range files {
		name := file.Name()
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var endpoints []Endpoint
	for _, name := range names {
		found, err := parseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, found...)
	}
	return endpoints, nil
}

func parseFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var endpoints []Endpoint
	var current Endpoint

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reBody.FindStringSubmatch(line); len(match) > 1 {
			current.Body = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

// renderAsciiDoc writes the reference in the format the docs service
// serves
func renderAsciiDoc(endpoints []Endpoint) string {
	var b strings.Builder
	b.WriteString("= Renderer API\n\n")
	b.WriteString("Generated by cmd/docgen from the handler annotations. Do not edit.\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n`%s`\n\n", ep.Title, ep.Route)
		if ep.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", ep.Description)
		}
		if ep.Body != "" {
			fmt.Fprintf(&b, "Body: `+%s+`\n\n", ep.Body)
		}
		fmt.Fprintf(&b, "Response: `+%s+`\n", ep.Response)
	}
	return b.String()
}
