package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"audiobrief/tui"

	"github.com/charmbracelet/huh/spinner"
	"github.com/creativeprojects/go-selfupdate"
)

// defaultUpdateRepo is the GitHub repository releases are published to.
// AUDIOBRIEF_UPDATE_REPO overrides it for forks.
const defaultUpdateRepo = "audiobrief/audiobrief"

// runUpdate replaces the running binary with the latest GitHub release
func runUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	check := fs.Bool("check", false, "Only report whether an update is available")
	repo := fs.String("repo", updateRepo(), "GitHub repository as owner/name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !isReleaseVersion(version) {
		return fmt.Errorf("this is a %q build; install a release to use update", version)
	}

	var latest *selfupdate.Release
	var found bool
	var detectErr error
	err := spinner.New().
		Title("Checking for updates...").
		Action(func() {
			latest, found, detectErr = selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(*repo))
		}).
		Run()
	if err != nil {
		return err
	}
	if detectErr != nil {
		return fmt.Errorf("detect latest release: %w", detectErr)
	}
	if !found {
		return fmt.Errorf("no release of %s found for %s/%s", *repo, runtime.GOOS, runtime.GOARCH)
	}

	if latest.LessOrEqual(version) {
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("audiobrief %s is up to date", version)))
		return nil
	}
	if *check {
		fmt.Println(tui.InfoStyle.Render(fmt.Sprintf("audiobrief %s is available (you have %s)", latest.Version(), version)))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	var updateErr error
	err = spinner.New().
		Title(fmt.Sprintf("Downloading audiobrief %s...", latest.Version())).
		Action(func() {
			updateErr = selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe)
		}).
		Run()
	if err != nil {
		return err
	}
	if updateErr != nil {
		return fmt.Errorf("update %s: %w", exe, updateErr)
	}

	fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Updated to audiobrief %s", latest.Version())))
	return nil
}

func updateRepo() string {
	if repo := strings.TrimSpace(os.Getenv("AUDIOBRIEF_UPDATE_REPO")); repo != "" {
		return repo
	}
	return defaultUpdateRepo
}

// isReleaseVersion reports whether v looks like a semantic version, which
// release comparisons require.
func isReleaseVersion(v string) bool {
	v = strings.TrimPrefix(v, "v")
	if v == "" {
		return false
	}
	core, _, _ := strings.Cut(v, "+")
	core, _, _ = strings.Cut(core, "-")
	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
