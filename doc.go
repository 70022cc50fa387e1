/*
Command reflred reduces neutron-reflectometry event data to calibrated
reflectivity curves as a function of momentum transfer Q.

Program overview

Input is a TOML run-parameter file describing one supermirror reference
measurement and any number of sample measurements taken at different
incidence angles of the same sample.  Output is one ORSO .ort file per
sample run, plus a combined curve when several runs are given.

For each run the program attaches physical coordinates (wavelength,
reflection angle, Q) to the detector events, applies the instrument's
acceptance masks and the footprint correction, and histograms the
events.  The reference measurement, corrected for the known supermirror
reflectivity model, provides the ideal-sample intensity that normalizes
every sample histogram.  The per-bin Q resolution combines the angular,
wavelength and sample-size contributions in quadrature.  When several
sample runs are reduced, their curves are brought into agreement in
their overlapping Q ranges by a weighted least-squares fit of per-curve
scale factors and merged onto the output grid with inverse-variance
weights.

Sample run:

  reflred -repeatable -o out runs.toml

with runs.toml along the lines of

  title = "Ni/Ti multilayer"

  [instrument]
  chopper_phase_deg = 7.0
  sample_size_mm = 10.0

  [qgrid]
  min = 0.005
  max = 0.3
  n = 200
  scale = "log"

  [[run]]
  id = "ref"
  role = "reference"
  sample_rotation_deg = 0.7
  detector_rotation_deg = 1.4

  [[run]]
  id = "sample1"
  role = "sample"
  sample_rotation_deg = 0.7
  detector_rotation_deg = 1.4

Command line usage

  reflred [options] <config.toml>    reduce runs listed in config
  reflred -v                         display version and copyright

  Options:
     -o <output-dir>    directory for .ort files (default .)
     -repeatable        fixed random seed for synthetic events

Until raw NeXus file loading is hooked up, event streams are synthesized
per run from the configured geometry; -repeatable fixes the generator
seed so repeated runs produce identical output.

The library packages under this module (phys, graph, events, hist,
supermirror, amor, reduce, curves, stream, ort) implement the reduction
pipeline and can be used independently of the command.

-------------
Public domain.
*/
package main
