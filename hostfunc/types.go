package hostfunc

// InstallPkgResponse is returned by the install_pkg host function.
type InstallPkgResponse struct {
	Success bool   `json:"success"`
	Package string `json:"package"`
	Error   string `json:"error,omitempty"`
}
