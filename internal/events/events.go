// Package appevents defines the two message directions between the TUI and
// the application controller: AppEvent flows from the TUI to the controller,
// AppUIMessage flows back.
package appevents

// AppEvent is a marker interface for events sent from the TUI to the App's
// logic controller. The unexported method ensures only types embedding Event
// satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded in other event types to satisfy the AppEvent interface.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App's logic
// controller to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded in other types to implement AppUIMessage.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// AppErrorMsg carries a controller-side error to the TUI.
type AppErrorMsg struct {
	UIMessage
	Err error
}
