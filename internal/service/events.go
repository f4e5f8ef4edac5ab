package service

import "fmt"

// Trace event names, one per kind of committed change.
const (
	EventInit          = "init"
	EventStock         = "stock"
	EventCigaretteDone = "cigarette_done"
	EventClose         = "close"
	EventNotify        = "notify"
	EventNotified      = "notified"
	EventWatcherClosed = "watcher_closed"
	EventWaitPair      = "wait_pair"
	EventConsume       = "consume"
	EventSmokerClosed  = "smoker_closed"
	EventSmoking       = "smoking"
)

// AgentName is the participant name of the single agent.
const AgentName = "AG"

// WatcherName returns the participant name of watcher i.
func WatcherName(i int) string { return fmt.Sprintf("WT%02d", i) }

// SmokerName returns the participant name of smoker k.
func SmokerName(k int) string { return fmt.Sprintf("SM%02d", k) }
