package tui

// trackerUpdateMsg signals that at least one tracked operation changed
// since the last render. Updates are coalesced by the tracker, so one
// message may cover several transitions.
type trackerUpdateMsg struct{}

// trackerClosedMsg signals that the tracker shut down and the dashboard
// should exit.
type trackerClosedMsg struct{}
