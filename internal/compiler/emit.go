package compiler

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/logfields"
)

// emitAssets writes every produced asset to the output filesystem. Writes
// for independent assets fan out concurrently; a failing write surfaces as
// the stage's failure without rolling back siblings that already landed.
func (c *Compiler) emitAssets(ctx context.Context, comp *Compilation) error {
	if err := c.Hooks.Emit.Call(ctx, comp); err != nil {
		return err
	}

	outputDir := c.options.Output.Dir
	if err := c.OutputFS.MkdirAll(outputDir); err != nil {
		return errors.Wrap(err, errors.CategoryEmit, errors.SeverityFatal, "failed to create output directory").
			WithContext("dir", outputDir)
	}

	assets := comp.assetsSnapshot()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for name, asset := range assets {
		wg.Add(1)
		go func(name string, asset *Asset) {
			defer wg.Done()
			if err := c.writeAsset(comp, outputDir, name, asset); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(name, asset)
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	return c.Hooks.AfterEmit.Call(ctx, comp)
}

// writeAsset emits one asset. The target-relative path is the asset name
// with any query-string suffix stripped; if the previously recorded
// exists-at path already equals the computed target the write is skipped and
// the asset is marked not emitted this round.
func (c *Compiler) writeAsset(comp *Compilation, outputDir, name string, asset *Asset) error {
	target := name
	if qi := strings.IndexByte(target, '?'); qi >= 0 {
		target = target[:qi]
	}
	targetPath := c.OutputFS.Join(outputDir, target)

	if asset.ExistsAt == targetPath {
		comp.markEmitted(name, targetPath, false)
		return nil
	}

	if strings.ContainsAny(target, "/\\") {
		if err := c.OutputFS.MkdirAll(filepath.Dir(targetPath)); err != nil {
			return errors.EmitFailed(name, err)
		}
	}
	if err := c.OutputFS.WriteFile(targetPath, asset.Source); err != nil {
		return errors.EmitFailed(name, err)
	}
	comp.markEmitted(name, targetPath, true)
	c.logger.Debug("emitted asset", logfields.Asset(name), logfields.Path(targetPath))
	return nil
}
