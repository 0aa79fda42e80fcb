// Package zigbee2mqtt republishes zigbee2mqtt devices as Homie devices.
//
// The bridge follows the retained <base>/bridge/devices list:
//
//	bridge/devices ──► ParseDevices ──► MapDevice ──► Registry.Register
//	                                                   └─► subscribe <base>/<friendly_name>
//	<base>/<friendly_name> ──► DecodeState ──► Binding.Convert ──► Device.Send
//
// Every interviewed, enabled device is registered as
// zigbee2mqtt-<ieee address>. Exposes map onto four nodes:
//
//   - link: the link quality (0-255)
//   - battery: the battery level in percent
//   - action: button and remote actions, published without retain
//   - sensors: every other numeric, binary, enum and text expose
//
// Device list entries are validated against an embedded JSON schema one by
// one; a malformed entry is skipped without affecting the others. A device
// that gains exposes in a later list grows through the init/ready bracket.
// Nothing is ever removed from a published device.
//
// The bridge is read-only: every property is published with settable=false.
package zigbee2mqtt
