package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Error joins the validation errors; it is only meaningful when !OK().
func (v Validation) Error() string {
	return "config validation failed:\n- " + strings.Join(v.Errors, "\n- ")
}

// NormalizeAndValidate trims string fields and returns the normalized copy
// together with every problem found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Source.RepoURL = strings.TrimSpace(out.Source.RepoURL)
	out.Source.Document = filepath.ToSlash(strings.TrimSpace(out.Source.Document))
	out.Source.TempPrefix = strings.TrimSpace(out.Source.TempPrefix)
	out.Extract.Header = strings.TrimSpace(out.Extract.Header)
	out.Notify.WebhookEnv = strings.TrimSpace(out.Notify.WebhookEnv)
	out.Notify.KeyringAccount = strings.TrimSpace(out.Notify.KeyringAccount)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// source
	if out.Source.RepoURL == "" {
		res.addErr("source.repo_url is required")
	} else if strings.Contains(out.Source.RepoURL, "://") {
		// scp-style (git@host:org/repo) and plain paths are left to the cloner
		u, err := url.Parse(out.Source.RepoURL)
		if err != nil || (u.Host == "" && u.Scheme != "file") {
			res.addErr("source.repo_url is not a valid url: %q", out.Source.RepoURL)
		}
	}
	switch doc := out.Source.Document; {
	case doc == "":
		res.addErr("source.document is required")
	case filepath.IsAbs(doc) || strings.HasPrefix(doc, "/"):
		res.addErr("source.document must be relative to the repository root")
	case !filepath.IsLocal(filepath.FromSlash(doc)):
		res.addErr("source.document must stay inside the repository: %q", doc)
	}
	if strings.ContainsAny(out.Source.TempPrefix, `/\`) {
		res.addErr("source.temp_prefix cannot contain path separators")
	}
	if out.Source.CloneDepth < 0 {
		res.addErr("source.clone_depth must be >= 0")
	} else if out.Source.CloneDepth == 0 {
		res.addWarn("source.clone_depth is 0; the full history will be cloned every run.")
	}

	// extract
	if out.Extract.LinkMarker == "" {
		res.addErr("extract.link_marker is required")
	}
	if out.Extract.Header == "" {
		res.addErr("extract.header must not be empty.")
	}

	// notify
	if out.Notify.WebhookEnv == "" && out.Notify.KeyringAccount == "" {
		res.addErr("notify.webhook_env or notify.keyring_account is required")
	}
	if out.Notify.TimeoutSeconds <= 0 {
		res.addErr("notify.timeout_seconds must be > 0")
	}
	if out.Notify.MinIntervalSeconds < 0 {
		res.addErr("notify.min_interval_seconds must be >= 0")
	}

	// schedule
	if out.Schedule.IntervalHours <= 0 {
		res.addErr("schedule.interval_hours must be > 0")
	} else if out.Schedule.IntervalHours < 6 {
		res.addWarn("schedule.interval_hours is very low (%d); the channel will get repeated digests.", out.Schedule.IntervalHours)
	}

	return out, res
}
