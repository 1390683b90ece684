package protocol

// Permission outcome kinds.
const (
	PermissionApproved = "approved"
	PermissionDenied   = "denied-no-approval-rule-and-could-not-request-from-user"
)

// PermissionRequest describes the action the server wants approved.
type PermissionRequest struct {
	Kind       string                 `json:"kind,omitempty"`
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Input      map[string]interface{} `json:"input,omitempty"`
}

// PermissionRequestParams is the params shape of an inbound
// permission.request request.
type PermissionRequestParams struct {
	SessionID string            `json:"sessionId"`
	Request   PermissionRequest `json:"permissionRequest"`
}

// PermissionResult is the client's verdict.
type PermissionResult struct {
	Kind string `json:"kind"`
}

// PermissionRequestResult wraps the verdict as the server expects it.
type PermissionRequestResult struct {
	Result PermissionResult `json:"result"`
}

// ApprovedPermission builds an approval verdict.
func ApprovedPermission() PermissionResult {
	return PermissionResult{Kind: PermissionApproved}
}

// DeniedPermission builds a denial verdict. Used both for explicit denials
// and when no handler is registered to ask the user.
func DeniedPermission() PermissionResult {
	return PermissionResult{Kind: PermissionDenied}
}
