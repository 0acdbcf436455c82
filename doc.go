/*
Package earshot allows to build and run live audio processing chains.

Concept

Audio is captured from an input device and pushed through an ordered
chain of stages:

    Capture - the only producer, reads fixed-size chunks from the device;
    Transforms - synchronous stages, one output chunk per input chunk;
    Window - buffers audio for slow consumers, such as speech recognizers;
    Sink - the destination of audio, e.g. wav file.

Every stage has the same lifecycle:

    Start - acquire resources, start background goroutines;
    Exec - process a single chunk and forward the result;
    Stop - flush buffered data, release resources.

The forward handle is passed to the stage on every call, stages don't keep
references to each other. Chain computes forwarding from the ordered list
of stages and tracks lifecycle phase of every stage.

Format

All chunks share the same format: 16-bit signed little-endian PCM, mono,
16 kHz, 512 frames per chunk (32 ms).

Errors

Failure on a single chunk in a synchronous stage drops the chunk and the
chain continues. Failure of a consumer on a single window discards its
results. Device and sink failures are fatal and abort the run. Runner
returns only fatal errors and logs the rest.
*/
package earshot
