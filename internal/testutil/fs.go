package testutil

import "testing/fstest"

// ScriptFS builds an in-memory file system from path → YAML source.
func ScriptFS(files map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for p, src := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(src)}
	}
	return fsys
}
