package main

import (
	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/internal/utils"
)

// normalizeFolders turns command line folders into a duplicate free list of
// absolute paths, keeping the given order.
func normalizeFolders(args []string) ([]string, error) {
	cfg := config.Default()
	for _, arg := range args {
		folder, err := utils.NormalizePath(arg)
		if err != nil {
			return nil, err
		}
		cfg.AddFolder(folder)
	}
	return cfg.WatchFolderList, nil
}
