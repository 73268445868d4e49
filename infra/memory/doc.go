// Package memory provides object reuse for the hot submit path. The
// engine allocates one Order per command; pooling them keeps the
// matching loop off the allocator under sustained load.
package memory
