// Package bthome bridges BTHome BLE advertisements onto the Homie bus.
//
// The bridge is a dispatcher plus one worker per peripheral:
//
//	scanner ──► dispatch ──► [queue] ──► worker (bthome-a4c138000001)
//	                    └──► [queue] ──► worker (kitchen-sensor)
//
// The dispatcher runs on the scanning goroutine. It resolves the
// peripheral's identity, applies the per-peripheral rate limit and hands
// the advertisement to that peripheral's bounded queue, blocking when the
// queue is full. Each worker decodes, maps and publishes its advertisements
// in order, so one slow device never reorders another's values.
//
// On first sight a peripheral is registered with the "sensors" node;
// properties are inserted as reading kinds appear, and the "link" node is
// inserted the first time an RSSI is reported.
package bthome
