// Package model defines the provider‑agnostic helpers shared by the
// processor implementations in its sub-packages.
//
// Core goals:
//   - Every provider implements Model, whose Process method has the
//     core.Processor signature
//   - Normalize tool call arguments (ParseArguments, FormatArguments)
//   - Publish streaming events through the processor context
//     (StreamEmitter, ToolCallAccumulator)
//
// Providers live in sub-packages (openai, anthropic, mock) so higher layers
// stay decoupled from vendor SDKs.
package model
