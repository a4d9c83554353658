package listener

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads declarations from paths. A path may be a YAML file or a
// directory of .yaml/.yml files; missing paths are skipped. Files that
// cannot be read or parsed are reported in the joined error while the
// declarations of the other files are still returned.
func Load(paths []string, logger *slog.Logger) ([]Declaration, error) {
	var (
		decls []Declaration
		errs  []error
	)
	for _, p := range paths {
		files, err := yamlFiles(p)
		if err != nil {
			errs = append(errs, &DeclarationError{Source: p, Err: err})
			continue
		}
		if files == nil {
			logger.Debug("listener path does not exist, skipping", "path", p)
			continue
		}
		for _, f := range files {
			ds, err := LoadFile(f)
			if err != nil {
				logger.Warn("cannot load listener file", "path", f, "err", err)
				errs = append(errs, err)
				continue
			}
			logger.Info("loaded listener file", "path", f, "listeners", len(ds))
			decls = append(decls, ds...)
		}
	}
	return decls, errors.Join(errs...)
}

// LoadFile parses one declaration file. Unknown fields are rejected.
// Unnamed listeners are named after the file and their position.
func LoadFile(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DeclarationError{Source: path, Err: err}
	}

	var doc File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &DeclarationError{Source: path, Err: fmt.Errorf("parse: %w", err)}
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range doc.Listeners {
		doc.Listeners[i].Source = path
		if doc.Listeners[i].Name == "" {
			doc.Listeners[i].Name = fmt.Sprintf("%s-%d", base, i+1)
		}
	}
	return doc.Listeners, nil
}

// yamlFiles expands p into the declaration files it names, sorted by name.
// It returns nil, nil when p does not exist.
func yamlFiles(p string) ([]string, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{p}, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("read listeners dir: %w", err)
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		files = append(files, filepath.Join(p, name))
	}
	sort.Strings(files)
	return files, nil
}
