package models

// PanelAccount is the provisioning panel's view of a user: its own independent
// source of truth for quota, usage and status.
type PanelAccount struct {
	Username    string `json:"username"`
	DataLimit   int64  `json:"data_limit"`
	UsedTraffic int64  `json:"used_traffic"`
	Status      string `json:"status"`
	ExpireAt    int64  `json:"expire"`
}

// PanelToken is the panel's bearer token response.
type PanelToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ProvisioningStatus is what sync reports back to the UI about the remote
// account. Zero value means the panel could not be reached this sync.
type ProvisioningStatus struct {
	Username    string `json:"username"`
	DataLimit   int64  `json:"data_limit"`
	UsedTraffic int64  `json:"used_traffic"`
	Status      string `json:"status"`
	ExpireAt    int64  `json:"expire_at"`
	Reachable   bool   `json:"reachable"`
}
