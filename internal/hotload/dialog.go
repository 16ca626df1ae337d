package hotload

import (
	"context"
	"fmt"

	"dario.cat/mergo"
)

// UpdateDialog customizes the confirmation shown before an update is
// installed. Empty fields take the values of DefaultUpdateDialog.
type UpdateDialog struct {
	AppendReleaseDescription     bool
	DescriptionPrefix            string
	MandatoryContinueButtonLabel string
	MandatoryUpdateMessage       string
	OptionalIgnoreButtonLabel    string
	OptionalInstallButtonLabel   string
	OptionalUpdateMessage        string
	Title                        string
}

// DefaultUpdateDialog returns the stock dialog texts.
func DefaultUpdateDialog() UpdateDialog {
	return UpdateDialog{
		AppendReleaseDescription:     false,
		DescriptionPrefix:            " Description: ",
		MandatoryContinueButtonLabel: "Continue",
		MandatoryUpdateMessage:       "An update is available that must be installed.",
		OptionalIgnoreButtonLabel:    "Ignore",
		OptionalInstallButtonLabel:   "Install",
		OptionalUpdateMessage:        "An update is available. Would you like to install it?",
		Title:                        "Update available",
	}
}

// DialogAction is what pressing a dialog button does.
type DialogAction int

const (
	ActionInstall DialogAction = iota
	ActionIgnore
)

// DialogButton is one choice offered to the user.
type DialogButton struct {
	Text   string
	Action DialogAction
}

// Dialog is a confirmation request handed to a Presenter.
type Dialog struct {
	Title   string
	Message string
	Buttons []DialogButton
}

// Presenter shows a Dialog and blocks until the user picks a button,
// returning its index in Dialog.Buttons.
type Presenter interface {
	Present(ctx context.Context, d Dialog) (int, error)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, d Dialog) (int, error)

// Present calls f.
func (f PresenterFunc) Present(ctx context.Context, d Dialog) (int, error) {
	return f(ctx, d)
}

func resolveUpdateDialog(custom *UpdateDialog) (UpdateDialog, error) {
	resolved := *custom
	if err := mergo.Merge(&resolved, DefaultUpdateDialog()); err != nil {
		return UpdateDialog{}, fmt.Errorf("merging update dialog defaults: %w", err)
	}
	return resolved, nil
}

// buildDialog builds the confirmation for pkg. Mandatory updates get a single
// continue button and no way to decline.
func buildDialog(opts UpdateDialog, pkg *RemotePackage) Dialog {
	d := Dialog{Title: opts.Title}
	if pkg.IsMandatory {
		d.Message = opts.MandatoryUpdateMessage
		d.Buttons = []DialogButton{{Text: opts.MandatoryContinueButtonLabel, Action: ActionInstall}}
	} else {
		d.Message = opts.OptionalUpdateMessage
		d.Buttons = []DialogButton{
			{Text: opts.OptionalInstallButtonLabel, Action: ActionInstall},
			{Text: opts.OptionalIgnoreButtonLabel, Action: ActionIgnore},
		}
	}

	if opts.AppendReleaseDescription && pkg.Description != "" {
		d.Message += fmt.Sprintf("%s %s", opts.DescriptionPrefix, pkg.Description)
	}
	return d
}
