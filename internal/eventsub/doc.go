// Package eventsub owns the websocket session to Twitch EventSub.
//
// One manager runs one live session at a time: dial, welcome handshake,
// chat subscriptions, then a read loop that routes notifications to the
// command handler. Transport failures feed an exponential backoff loop;
// only a rejected credential stops the manager.
package eventsub
