package acquisition

import "time"

// Config scopes every request issued by a Client.
type Config struct {
	ServerURL      string
	DeploymentKey  string
	AppVersion     string
	ClientUniqueID string
	Timeout        time.Duration
}

// QueryPackage is what the client tells the server about the package it is
// currently running. Label and PackageHash are empty when only the binary's
// own bundle is running.
type QueryPackage struct {
	AppVersion  string
	PackageHash string
	Label       string
	IsCompanion bool
}

// UpdateCheckResponse is the "updateInfo" object returned by updateCheck.
type UpdateCheckResponse struct {
	AppVersion             string `json:"appVersion,omitempty"`
	Description            string `json:"description,omitempty"`
	IsDisabled             bool   `json:"isDisabled,omitempty"`
	IsMandatory            bool   `json:"isMandatory,omitempty"`
	Label                  string `json:"label,omitempty"`
	PackageHash            string `json:"packageHash,omitempty"`
	Rollout                *int   `json:"rollout,omitempty"`
	DownloadURL            string `json:"downloadURL,omitempty"`
	IsAvailable            bool   `json:"isAvailable"`
	PackageSize            int64  `json:"packageSize,omitempty"`
	ShouldRunBinaryVersion bool   `json:"shouldRunBinaryVersion,omitempty"`
	UpdateAppVersion       bool   `json:"updateAppVersion,omitempty"`
}

type updateCheckEnvelope struct {
	UpdateInfo *UpdateCheckResponse `json:"updateInfo"`
}

// DeploymentStatus is the outcome of activating a package on the device.
type DeploymentStatus string

const (
	DeploymentSucceeded DeploymentStatus = "DeploymentSucceeded"
	DeploymentFailed    DeploymentStatus = "DeploymentFailed"
)

// DeployedPackage identifies the package a deploy report is about.
type DeployedPackage struct {
	AppVersion    string
	Label         string
	DeploymentKey string
}

// DeployReport describes one deployment outcome. Package is nil when the
// report is about a new binary version rather than a package.
type DeployReport struct {
	Package                   *DeployedPackage
	Status                    DeploymentStatus
	PreviousLabelOrAppVersion string
	PreviousDeploymentKey     string
}

type deploymentStatusReport struct {
	AppVersion                string `json:"appVersion"`
	ClientUniqueID            string `json:"clientUniqueId,omitempty"`
	DeploymentKey             string `json:"deploymentKey"`
	PreviousDeploymentKey     string `json:"previousDeploymentKey,omitempty"`
	PreviousLabelOrAppVersion string `json:"previousLabelOrAppVersion,omitempty"`
	Label                     string `json:"label,omitempty"`
	Status                    string `json:"status,omitempty"`
}

type downloadReport struct {
	ClientUniqueID string `json:"clientUniqueId"`
	DeploymentKey  string `json:"deploymentKey"`
	Label          string `json:"label"`
}
