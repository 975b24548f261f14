package qdisp

// Merger consumes the bytes of one chunk's response as they arrive.
// Flush is called once per AskForResponseData completion, in order,
// for a given chunk query; last is true on the final call.
//
// If largeResult is true (on any call), every future ask for this
// query demotes to the low-priority lane; the demotion is sticky and
// never reverts even if a later Flush reports false.
type Merger interface {
	Flush(data []byte, last bool) (largeResult bool, err error)
}
