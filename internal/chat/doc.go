// Package chat defines the types shared by every layer of coven-chat.
//
// Two shapes describe a message:
//
//   - Row: what the store persists and the realtime feed delivers,
//     {id, session_id, message: {type: "human"|"ai", content}, created_at}
//   - Message: what a session timeline holds, with the row type mapped to a
//     Role ("user" or "agent")
//
// Conversation is the derived index entry for one historical session and
// AgentRequest is the body of the outbound call to the agent endpoint.
//
// The package also holds the error taxonomy: ErrEmptyContent and ErrBusy for
// rejected sends, DispatchError for transport failures, HistoryLoadError for
// failed history fetches and ErrResponseTimeout for unanswered requests.
package chat
