// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shaders holds the GLSL sources of the renderer programs. The
// compiled SPIR-V is read by name, <program>.<vert|frag>.spv, from this
// directory or from a kar archive built from it.
package shaders

//go:generate glslangValidator -V gbuffer.vert -o gbuffer.vert.spv
//go:generate glslangValidator -V gbuffer.frag -o gbuffer.frag.spv
//go:generate glslangValidator -V lighting.vert -o lighting.vert.spv
//go:generate glslangValidator -V lighting.frag -o lighting.frag.spv
//go:generate glslangValidator -V overlay.vert -o overlay.vert.spv
//go:generate glslangValidator -V overlay.frag -o overlay.frag.spv
